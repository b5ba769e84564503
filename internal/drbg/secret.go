package drbg

// secret is a fixed-length buffer for working state. It is never resliced;
// new values are copied in and old ones wiped in place.
type secret []byte

func newSecret(n int) secret { return make(secret, n) }

func (s secret) load(b []byte) {
	if len(b) != len(s) {
		panic("drbg: secret length mismatch")
	}
	copy(s, b)
}

func (s secret) fill(b byte) {
	for i := range s {
		s[i] = b
	}
}

func (s secret) wipe() { clear(s) }

// clone returns a working copy of s. The caller wipes it.
func (s secret) clone() secret {
	c := newSecret(len(s))
	copy(c, s)
	return c
}
