package nist

import (
	"errors"
	"fmt"
	"math"
)

// ErrPrecondition marks an input the test is not defined for, e.g. a
// sequence that is too short.
var ErrPrecondition = errors.New("nist: test precondition not met")

func precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// minBits is the shortest sequence any test in RunAll accepts.
const minBits = 100

// frequency is the Frequency (Monobit) test, SP 800-22 section 2.1.
func frequency(seq []byte) (map[string]float64, error) {
	n := len(seq)
	if n < minBits {
		return nil, precondition("n=%d < %d", n, minBits)
	}
	sum := 0
	for _, b := range seq {
		if b == 1 {
			sum++
		} else {
			sum--
		}
	}
	sObs := math.Abs(float64(sum)) / math.Sqrt(float64(n))
	return map[string]float64{
		"pValue": math.Erfc(sObs / math.Sqrt2),
		"sObs":   sObs,
	}, nil
}

// blockFrequency is the Frequency Test within a Block, section 2.2.
func blockFrequency(seq []byte, m int) (map[string]float64, error) {
	n := len(seq)
	if n < minBits || m <= 0 {
		return nil, precondition("n=%d, M=%d", n, m)
	}
	blocks := n / m
	if blocks == 0 {
		return nil, precondition("no complete block of %d bits", m)
	}
	chi := 0.0
	for i := 0; i < blocks; i++ {
		ones := 0
		for _, b := range seq[i*m : (i+1)*m] {
			ones += int(b)
		}
		pi := float64(ones) / float64(m)
		chi += (pi - 0.5) * (pi - 0.5)
	}
	chi *= 4.0 * float64(m)
	return map[string]float64{
		"pValue": igamc(float64(blocks)/2.0, chi/2.0),
		"chiSqr": chi,
	}, nil
}

// runs is the Runs test, section 2.3.
func runs(seq []byte) (map[string]float64, error) {
	n := len(seq)
	if n < minBits {
		return nil, precondition("n=%d < %d", n, minBits)
	}
	ones := 0
	for _, b := range seq {
		ones += int(b)
	}
	pi := float64(ones) / float64(n)
	tau := 2.0 / math.Sqrt(float64(n))
	if math.Abs(pi-0.5) >= tau {
		// the frequency prerequisite fails; the run count is meaningless
		return map[string]float64{"pValue": 0, "piObs": pi}, nil
	}
	vObs := 1
	for i := 1; i < n; i++ {
		if seq[i] != seq[i-1] {
			vObs++
		}
	}
	num := math.Abs(float64(vObs) - 2.0*float64(n)*pi*(1.0-pi))
	den := 2.0 * math.Sqrt(2.0*float64(n)) * pi * (1.0 - pi)
	return map[string]float64{
		"pValue": math.Erfc(num / den),
		"vObs":   float64(vObs),
		"piObs":  pi,
	}, nil
}

// longestRun is the Test for the Longest Run of Ones in a Block, section
// 2.4.
func longestRun(seq []byte) (map[string]float64, error) {
	n := len(seq)
	if n < 128 {
		return nil, precondition("n=%d < 128", n)
	}

	var m int
	var vMin int
	var pi []float64
	switch {
	case n < 6272:
		m, vMin = 8, 1
		pi = []float64{0.21484375, 0.3671875, 0.23046875, 0.1875}
	case n < 750000:
		m, vMin = 128, 4
		pi = []float64{0.1174035788, 0.242955959, 0.249363483, 0.17517706, 0.102701071, 0.112398847}
	default:
		m, vMin = 10000, 10
		pi = []float64{0.0882, 0.2092, 0.2483, 0.1933, 0.1208, 0.0675, 0.0727}
	}
	k := len(pi) - 1
	blocks := n / m

	nu := make([]int, k+1)
	for i := 0; i < blocks; i++ {
		longest, cur := 0, 0
		for _, b := range seq[i*m : (i+1)*m] {
			if b == 1 {
				cur++
				longest = max(longest, cur)
			} else {
				cur = 0
			}
		}
		// bucket 0 collects runs <= vMin, bucket k runs >= vMin+k
		idx := min(max(longest-vMin, 0), k)
		nu[idx]++
	}

	chi := 0.0
	for i := 0; i <= k; i++ {
		exp := float64(blocks) * pi[i]
		chi += (float64(nu[i]) - exp) * (float64(nu[i]) - exp) / exp
	}
	return map[string]float64{
		"pValue": igamc(float64(k)/2.0, chi/2.0),
		"chiSqr": chi,
	}, nil
}

// psiSquared is the ψ²_m statistic of the Serial test over the cyclic
// sequence.
func psiSquared(seq []byte, m int) float64 {
	if m <= 0 {
		return 0
	}
	n := len(seq)
	counts := make([]int, 1<<m)
	for i := 0; i < n; i++ {
		idx := 0
		for j := 0; j < m; j++ {
			idx = idx<<1 | int(seq[(i+j)%n])
		}
		counts[idx]++
	}
	sum := 0.0
	for _, c := range counts {
		sum += float64(c) * float64(c)
	}
	return sum*float64(int(1)<<m)/float64(n) - float64(n)
}

// serial is the Serial test, section 2.11.
func serial(seq []byte, m int) (map[string]float64, error) {
	n := len(seq)
	if m < 2 || n < 1<<m {
		return nil, precondition("n=%d, m=%d", n, m)
	}
	psi0 := psiSquared(seq, m)
	psi1 := psiSquared(seq, m-1)
	psi2 := psiSquared(seq, m-2)
	del1 := psi0 - psi1
	del2 := psi0 - 2.0*psi1 + psi2
	return map[string]float64{
		"pValue1": igamc(float64(int(1)<<(m-1))/2.0, del1/2.0),
		"pValue2": igamc(float64(int(1)<<(m-2))/2.0, del2/2.0),
	}, nil
}

// approximateEntropy is the Approximate Entropy test, section 2.12.
func approximateEntropy(seq []byte, m int) (map[string]float64, error) {
	n := len(seq)
	if n < minBits || m < 1 {
		return nil, precondition("n=%d, m=%d", n, m)
	}
	phi := func(bl int) float64 {
		counts := make([]int, 1<<bl)
		for i := 0; i < n; i++ {
			idx := 0
			for j := 0; j < bl; j++ {
				idx = idx<<1 | int(seq[(i+j)%n])
			}
			counts[idx]++
		}
		sum := 0.0
		for _, c := range counts {
			if c > 0 {
				p := float64(c) / float64(n)
				sum += p * math.Log(p)
			}
		}
		return sum
	}
	apen := phi(m) - phi(m+1)
	chi := 2.0 * float64(n) * (math.Ln2 - apen)
	return map[string]float64{
		"pValue": igamc(float64(int(1)<<(m-1)), chi/2.0),
		"apen":   apen,
		"chiSqr": chi,
	}, nil
}

// cusumP is the Cumulative Sums p-value for maximum excursion z over n
// steps.
func cusumP(n, z int) float64 {
	fn, fz := float64(n), float64(z)
	sq := math.Sqrt(fn)

	sum1 := 0.0
	for k := int(math.Trunc((-fn/fz + 1) / 4)); k <= int(math.Trunc((fn/fz-1)/4)); k++ {
		sum1 += normalCDF((4*float64(k)+1)*fz/sq) - normalCDF((4*float64(k)-1)*fz/sq)
	}
	sum2 := 0.0
	for k := int(math.Trunc((-fn/fz - 3) / 4)); k <= int(math.Trunc((fn/fz-1)/4)); k++ {
		sum2 += normalCDF((4*float64(k)+3)*fz/sq) - normalCDF((4*float64(k)+1)*fz/sq)
	}
	return 1.0 - sum1 + sum2
}

func maxExcursion(seq []byte, reverse bool) int {
	s, z := 0, 0
	for i := range seq {
		b := seq[i]
		if reverse {
			b = seq[len(seq)-1-i]
		}
		if b == 1 {
			s++
		} else {
			s--
		}
		z = max(z, s, -s)
	}
	return z
}

// cumulativeSums is the Cumulative Sums (Cusum) test, section 2.13, in
// forward and reverse mode.
func cumulativeSums(seq []byte) (map[string]float64, error) {
	n := len(seq)
	if n < minBits {
		return nil, precondition("n=%d < %d", n, minBits)
	}
	fwd, rev := maxExcursion(seq, false), maxExcursion(seq, true)
	return map[string]float64{
		"pValueFWD": cusumP(n, fwd),
		"pValueREV": cusumP(n, rev),
	}, nil
}
