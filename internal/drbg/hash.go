package drbg

import "sync"

var one = []byte{0x01}

// seedLenFor returns the Hash_DRBG seed length in bytes for a digest of
// outLen bytes (SP 800-90A table 2).
func seedLenFor(outLen int) int {
	if outLen <= 32 {
		return 55
	}
	return 111
}

// HashDRBG is the Hash_DRBG mechanism of SP 800-90A section 10.1.1.
//
// Every operation computes into scratch buffers and commits V, C and the
// reseed counter only after all digest calls have succeeded.
type HashDRBG struct {
	mu      sync.Mutex
	d       Digest
	outLen  int
	seedLen int
	v       secret
	c       secret
	counter uint64
	ready   bool
}

// NewHash returns an uninstantiated Hash_DRBG over d.
func NewHash(d Digest) *HashDRBG {
	outLen := d.Size()
	seedLen := seedLenFor(outLen)
	return &HashDRBG{
		d:       d,
		outLen:  outLen,
		seedLen: seedLen,
		v:       newSecret(seedLen),
		c:       newSecret(seedLen),
	}
}

// SeedLen is the length of V and C in bytes.
func (h *HashDRBG) SeedLen() int { return h.seedLen }

func (h *HashDRBG) Instantiate(entropy, nonce, personalization []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.seed("instantiate", entropy, nonce, personalization)
}

func (h *HashDRBG) Reseed(entropy, additionalInput []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return ErrUninstantiated
	}
	return h.seed("reseed", one, h.v, entropy, additionalInput)
}

// seed derives a fresh V from material and C from V, then resets the
// counter.
func (h *HashDRBG) seed(op string, material ...[]byte) error {
	v := newSecret(h.seedLen)
	defer v.wipe()
	c := newSecret(h.seedLen)
	defer c.wipe()

	if err := hashDF(h.d, v, material...); err != nil {
		return &InternalError{Op: op, Err: err}
	}
	if err := hashDF(h.d, c, []byte{0x00}, v); err != nil {
		return &InternalError{Op: op, Err: err}
	}

	h.v.load(v)
	h.c.load(c)
	h.counter = 1
	h.ready = true
	return nil
}

// Generate fills out with pseudorandom bytes. On error out is zeroed and
// the working state is unchanged. An empty out still advances the state.
func (h *HashDRBG) Generate(out, additionalInput []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return ErrUninstantiated
	}

	v := h.v.clone()
	defer v.wipe()
	w := newSecret(h.outLen)
	defer w.wipe()

	fail := func(err error) error {
		clear(out)
		return &InternalError{Op: "generate", Err: err}
	}

	if len(additionalInput) > 0 {
		h.d.Update([]byte{0x02}, v, additionalInput)
		if err := h.d.Finish(w); err != nil {
			return fail(err)
		}
		addMod(v, w)
	}

	if err := h.hashgen(out, v, w); err != nil {
		return fail(err)
	}

	h.d.Update([]byte{0x03}, v)
	if err := h.d.Finish(w); err != nil {
		return fail(err)
	}
	addMod(v, w, h.c, counterBytes(h.counter))

	h.v.load(v)
	h.counter++
	return nil
}

// hashgen fills out from successive digests of data = v, v+1, v+2, ...
func (h *HashDRBG) hashgen(out []byte, v, w secret) error {
	data := v.clone()
	defer data.wipe()

	for off := 0; off < len(out); off += h.outLen {
		h.d.Update(data)
		if err := h.d.Finish(w); err != nil {
			return err
		}
		copy(out[off:], w)
		addMod(data, one)
	}
	return nil
}

func (h *HashDRBG) ReseedCounter() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counter
}

func (h *HashDRBG) Instantiated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Wipe zeroes V and C and returns the mechanism to the uninstantiated
// state.
func (h *HashDRBG) Wipe() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.v.wipe()
	h.c.wipe()
	h.counter = 0
	h.ready = false
}
