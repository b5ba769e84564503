package drbg

import (
	"fmt"

	"rng-drbg/internal/digest"
)

const (
	// MaxBytesPerRequest is the largest output a single Generate call
	// may produce (2^19 bits).
	MaxBytesPerRequest = 1 << 16

	// MaxInputLen bounds personalization strings and additional input.
	MaxInputLen = 1 << 32

	// MaxReseedInterval is the largest number of generate calls allowed
	// between reseeds, and the default interval.
	MaxReseedInterval = 1 << 48

	DefaultAlgorithm = "SHA-256"
	DefaultStrength  = Strength128
)

// Mechanism selects the DRBG construction.
type Mechanism int

const (
	MechanismHash Mechanism = iota + 1
	MechanismHMAC
	MechanismCTR
)

func (m Mechanism) String() string {
	switch m {
	case MechanismHash:
		return "Hash_DRBG"
	case MechanismHMAC:
		return "HMAC_DRBG"
	case MechanismCTR:
		return "CTR_DRBG"
	}
	return fmt.Sprintf("Mechanism(%d)", int(m))
}

// SecurityStrength is one of the four standard strengths in bits.
type SecurityStrength int

const (
	Strength112 SecurityStrength = 112
	Strength128 SecurityStrength = 128
	Strength192 SecurityStrength = 192
	Strength256 SecurityStrength = 256
)

var standardStrengths = []SecurityStrength{Strength112, Strength128, Strength192, Strength256}

// roundStrength rounds a requested strength up to the next standard value.
func roundStrength(requested int) (SecurityStrength, error) {
	if requested < 0 {
		return 0, fmt.Errorf("security strength %d is negative", requested)
	}
	for _, s := range standardStrengths {
		if requested <= int(s) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("security strength %d exceeds %d", requested, Strength256)
}

// maxStrength is the highest security strength each digest supports.
var maxStrength = map[string]SecurityStrength{
	"SHA-224":     Strength192,
	"SHA-512/224": Strength192,
	"SHA3-224":    Strength192,
	"SHA-256":     Strength256,
	"SHA-512/256": Strength256,
	"SHA-384":     Strength256,
	"SHA-512":     Strength256,
	"SHA3-256":    Strength256,
	"SHA3-384":    Strength256,
	"SHA3-512":    Strength256,
}

// Capability is the reseed capability of a DRBG instance.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityReseedOnly
	CapabilityPRAndReseed
)

func (c Capability) String() string {
	switch c {
	case CapabilityNone:
		return "none"
	case CapabilityReseedOnly:
		return "reseed_only"
	case CapabilityPRAndReseed:
		return "pr_and_reseed"
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

func (c Capability) SupportsReseed() bool { return c == CapabilityReseedOnly || c == CapabilityPRAndReseed }

func (c Capability) SupportsPredictionResistance() bool { return c == CapabilityPRAndReseed }

// Params is a requested DRBG configuration. Zero values select defaults:
// Hash_DRBG, SHA-256, 128 bits, no reseed capability, the maximum reseed
// interval.
type Params struct {
	Mechanism       Mechanism
	Algorithm       string
	Strength        int
	Capability      Capability
	ReseedInterval  uint64
	Personalization []byte
}

// Profile is a resolved configuration.
type Profile struct {
	Mechanism  Mechanism
	Algorithm  string
	Strength   SecurityStrength
	Capability Capability

	// OutLen is the digest length; SeedLen the length of V (and C).
	OutLen  int
	SeedLen int

	MinEntropyLen  int
	NonceLen       int
	ReseedInterval uint64
}

// String renders the profile as a configuration string accepted by
// ParseConfig.
func (p Profile) String() string {
	return fmt.Sprintf("%s,%s,%d,%s", p.Mechanism, p.Algorithm, p.Strength, p.Capability)
}

// Resolve validates p, applies defaults and negotiates the security
// strength against the digest. Errors are *ConfigurationError.
func Resolve(p Params) (Profile, error) {
	mech := p.Mechanism
	switch mech {
	case 0:
		mech = MechanismHash
	case MechanismHash, MechanismHMAC:
	case MechanismCTR:
		return Profile{}, configErrorf("%s is not supported", mech)
	default:
		return Profile{}, configErrorf("unknown mechanism %d", int(mech))
	}

	name := p.Algorithm
	if name == "" {
		name = DefaultAlgorithm
	}
	alg, err := digest.Lookup(name)
	if err != nil {
		return Profile{}, &ConfigurationError{Err: err}
	}
	ceiling, ok := maxStrength[alg.Name]
	if !ok {
		return Profile{}, configErrorf("no security strength known for %s", alg.Name)
	}

	strength := DefaultStrength
	if p.Strength != 0 {
		if strength, err = roundStrength(p.Strength); err != nil {
			return Profile{}, &ConfigurationError{Err: err}
		}
	}
	if strength > ceiling {
		return Profile{}, configErrorf("%s supports at most %d bits of security strength, %d requested",
			alg.Name, ceiling, p.Strength)
	}

	switch p.Capability {
	case CapabilityNone, CapabilityReseedOnly, CapabilityPRAndReseed:
	default:
		return Profile{}, configErrorf("unknown capability %d", int(p.Capability))
	}

	interval := p.ReseedInterval
	if interval == 0 {
		interval = MaxReseedInterval
	}
	if interval > MaxReseedInterval {
		return Profile{}, configErrorf("reseed interval %d exceeds 2^48", interval)
	}

	seedLen := alg.Size
	if mech == MechanismHash {
		seedLen = seedLenFor(alg.Size)
	}

	return Profile{
		Mechanism:      mech,
		Algorithm:      alg.Name,
		Strength:       strength,
		Capability:     p.Capability,
		OutLen:         alg.Size,
		SeedLen:        seedLen,
		MinEntropyLen:  int(strength) / 8,
		NonceLen:       int(strength) / 16,
		ReseedInterval: interval,
	}, nil
}
