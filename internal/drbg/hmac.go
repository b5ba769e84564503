package drbg

import "sync"

// HMACDRBG is the HMAC_DRBG mechanism of SP 800-90A section 10.1.2.
type HMACDRBG struct {
	mu      sync.Mutex
	m       MAC
	outLen  int
	key     secret
	v       secret
	counter uint64
	ready   bool
}

// NewHMAC returns an uninstantiated HMAC_DRBG over m.
func NewHMAC(m MAC) *HMACDRBG {
	outLen := m.Size()
	return &HMACDRBG{
		m:      m,
		outLen: outLen,
		key:    newSecret(outLen),
		v:      newSecret(outLen),
	}
}

// Instantiate starts from Key = 0x00... and V = 0x01... and runs the update
// process over entropy || nonce || personalization.
func (h *HMACDRBG) Instantiate(entropy, nonce, personalization []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := newSecret(h.outLen)
	defer key.wipe()
	v := newSecret(h.outLen)
	defer v.wipe()
	v.fill(0x01)

	if err := h.update(key, v, entropy, nonce, personalization); err != nil {
		return &InternalError{Op: "instantiate", Err: err}
	}
	h.commit(key, v)
	h.counter = 1
	h.ready = true
	return nil
}

func (h *HMACDRBG) Reseed(entropy, additionalInput []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return ErrUninstantiated
	}

	key, v := h.key.clone(), h.v.clone()
	defer key.wipe()
	defer v.wipe()

	if err := h.update(key, v, entropy, additionalInput); err != nil {
		return &InternalError{Op: "reseed", Err: err}
	}
	h.commit(key, v)
	h.counter = 1
	return nil
}

// Generate fills out with pseudorandom bytes. On error out is zeroed and
// the working state is unchanged.
func (h *HMACDRBG) Generate(out, additionalInput []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return ErrUninstantiated
	}

	key, v := h.key.clone(), h.v.clone()
	defer key.wipe()
	defer v.wipe()

	fail := func(err error) error {
		clear(out)
		return &InternalError{Op: "generate", Err: err}
	}

	if len(additionalInput) > 0 {
		if err := h.update(key, v, additionalInput); err != nil {
			return fail(err)
		}
	}

	for off := 0; off < len(out); off += h.outLen {
		if err := h.prf(v, key, v); err != nil {
			return fail(err)
		}
		copy(out[off:], v)
	}

	if err := h.update(key, v, additionalInput); err != nil {
		return fail(err)
	}
	h.commit(key, v)
	h.counter++
	return nil
}

// update is the HMAC_DRBG_Update process applied to the working copies key
// and v. Empty inputs are the same as no provided data.
func (h *HMACDRBG) update(key, v secret, inputs ...[]byte) error {
	provided := false
	for _, in := range inputs {
		if len(in) > 0 {
			provided = true
			break
		}
	}

	sep := []byte{0x00}
	msg := make([][]byte, 0, len(inputs)+2)
	msg = append(msg, v, sep)
	msg = append(msg, inputs...)

	if err := h.prf(key, key, msg...); err != nil {
		return err
	}
	if err := h.prf(v, key, v); err != nil {
		return err
	}
	if !provided {
		return nil
	}

	// msg[0] is v, which now holds the refreshed V.
	sep[0] = 0x01
	if err := h.prf(key, key, msg...); err != nil {
		return err
	}
	return h.prf(v, key, v)
}

// prf writes HMAC(key, parts...) into dst. dst may alias key or any part.
func (h *HMACDRBG) prf(dst, key secret, parts ...[]byte) error {
	if err := h.m.Init(key); err != nil {
		return err
	}
	h.m.Update(parts...)
	return h.m.Finish(dst)
}

func (h *HMACDRBG) commit(key, v secret) {
	h.key.load(key)
	h.v.load(v)
}

func (h *HMACDRBG) ReseedCounter() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counter
}

func (h *HMACDRBG) Instantiated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Wipe zeroes Key and V and returns the mechanism to the uninstantiated
// state.
func (h *HMACDRBG) Wipe() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.key.wipe()
	h.v.wipe()
	h.counter = 0
	h.ready = false
}
