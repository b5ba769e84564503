package drbg

import (
	"rng-drbg/internal/digest"
)

// Digest is the hash engine used by Hash_DRBG. Finish writes Size() bytes
// into out and leaves the engine ready for a new message.
type Digest interface {
	Size() int
	Update(p ...[]byte)
	Finish(out []byte) error
}

// MAC is the keyed engine used by HMAC_DRBG. Init (re)keys the engine;
// Finish writes Size() bytes into out and keeps the key.
type MAC interface {
	Size() int
	Init(key []byte) error
	Update(p ...[]byte)
	Finish(out []byte) error
}

// Generator is implemented by the DRBG mechanisms. Implementations own
// their working state and serialize calls on it.
type Generator interface {
	Instantiate(entropy, nonce, personalization []byte) error
	Reseed(entropy, additionalInput []byte) error
	Generate(out, additionalInput []byte) error
	ReseedCounter() uint64
	Instantiated() bool
	Wipe()
}

var (
	_ Generator = (*HashDRBG)(nil)
	_ Generator = (*HMACDRBG)(nil)
)

// EngineFactory builds digest and MAC engines by canonical algorithm name.
type EngineFactory interface {
	Digest(algorithm string) (Digest, error)
	MAC(algorithm string) (MAC, error)
}

type goEngines struct{}

func (goEngines) Digest(algorithm string) (Digest, error) {
	e, err := digest.New(algorithm)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (goEngines) MAC(algorithm string) (MAC, error) {
	m, err := digest.NewHMAC(algorithm)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultEngines returns the factory backed by the Go crypto packages.
func DefaultEngines() EngineFactory { return goEngines{} }

func newGenerator(p Profile, f EngineFactory) (Generator, error) {
	switch p.Mechanism {
	case MechanismHash:
		d, err := f.Digest(p.Algorithm)
		if err != nil {
			return nil, err
		}
		return NewHash(d), nil
	case MechanismHMAC:
		m, err := f.MAC(p.Algorithm)
		if err != nil {
			return nil, err
		}
		return NewHMAC(m), nil
	default:
		return nil, configErrorf("mechanism %s is not available", p.Mechanism)
	}
}
