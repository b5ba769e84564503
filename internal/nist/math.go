package nist

import "math"

func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// igamc is the complemented incomplete gamma function Q(a, x).
func igamc(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return math.NaN()
	}
	const eps = 1e-14
	const fpmin = 1e-300
	gln, _ := math.Lgamma(a)

	// series for P(a, x), then Q = 1 - P
	if x < a+1 {
		ap := a
		sum := 1.0 / a
		del := sum
		for n := 1; n < 1000; n++ {
			ap++
			del *= x / ap
			sum += del
			if math.Abs(del) < math.Abs(sum)*eps {
				break
			}
		}
		return 1.0 - sum*math.Exp(-x+a*math.Log(x)-gln)
	}

	// continued fraction for Q(a, x)
	b := x + 1 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i < 1000; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2.0
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1.0) < eps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-gln) * h
}
