// Package digest adapts the Go hash implementations to the narrow engine
// interfaces consumed by the DRBG mechanisms.
package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrShortBuffer is returned by Finish when the output buffer cannot hold
	// a full digest.
	ErrShortBuffer = errors.New("digest: output buffer too short")

	// ErrNotKeyed is returned when an HMAC engine is used before Init.
	ErrNotKeyed = errors.New("digest: hmac engine used before Init")

	// ErrUnknownAlgorithm is returned by Lookup for names outside the table.
	ErrUnknownAlgorithm = errors.New("digest: unknown algorithm")
)

// Algorithm describes one supported hash function.
type Algorithm struct {
	Name string
	Size int
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"SHA-224":     {"SHA-224", sha256.Size224, sha256.New224},
	"SHA-256":     {"SHA-256", sha256.Size, sha256.New},
	"SHA-384":     {"SHA-384", sha512.Size384, sha512.New384},
	"SHA-512":     {"SHA-512", sha512.Size, sha512.New},
	"SHA-512/224": {"SHA-512/224", sha512.Size224, sha512.New512_224},
	"SHA-512/256": {"SHA-512/256", sha512.Size256, sha512.New512_256},
	"SHA3-224":    {"SHA3-224", 28, sha3.New224},
	"SHA3-256":    {"SHA3-256", 32, sha3.New256},
	"SHA3-384":    {"SHA3-384", 48, sha3.New384},
	"SHA3-512":    {"SHA3-512", 64, sha3.New512},
}

// aliases maps a squashed spelling (upper case, no '-' or '_') to the
// canonical name.
var aliases = map[string]string{
	"SHA224":     "SHA-224",
	"SHA256":     "SHA-256",
	"SHA384":     "SHA-384",
	"SHA512":     "SHA-512",
	"SHA512/224": "SHA-512/224",
	"SHA512/256": "SHA-512/256",
	"SHA512224":  "SHA-512/224",
	"SHA512256":  "SHA-512/256",
	"SHA3224":    "SHA3-224",
	"SHA3256":    "SHA3-256",
	"SHA3384":    "SHA3-384",
	"SHA3512":    "SHA3-512",
}

// Canonical returns the canonical spelling of name, e.g. "sha512_256" ->
// "SHA-512/256".
func Canonical(name string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := algorithms[up]; ok {
		return up, nil
	}
	squashed := strings.NewReplacer("-", "", "_", "").Replace(up)
	if c, ok := aliases[squashed]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Lookup resolves name (any accepted spelling) to its Algorithm.
func Lookup(name string) (Algorithm, error) {
	c, err := Canonical(name)
	if err != nil {
		return Algorithm{}, err
	}
	return algorithms[c], nil
}

// Names lists the canonical algorithm names in sorted order.
func Names() []string {
	out := make([]string, 0, len(algorithms))
	for k := range algorithms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Engine is a reusable message digest.
type Engine struct {
	alg Algorithm
	h   hash.Hash
}

// New returns a digest engine for the named algorithm.
func New(name string) (*Engine, error) {
	alg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Engine{alg: alg, h: alg.New()}, nil
}

func (e *Engine) Name() string { return e.alg.Name }

func (e *Engine) Size() int { return e.alg.Size }

func (e *Engine) Update(p ...[]byte) {
	for _, b := range p {
		e.h.Write(b)
	}
}

// Finish writes the digest of everything written since the last Finish into
// out[:Size()] and resets the engine.
func (e *Engine) Finish(out []byte) error {
	if len(out) < e.alg.Size {
		e.h.Reset()
		return ErrShortBuffer
	}
	e.h.Sum(out[:0])
	e.h.Reset()
	return nil
}

// HMAC is a keyed MAC engine. Init must be called before use and may be
// called again to rekey.
type HMAC struct {
	alg Algorithm
	mac hash.Hash
}

// NewHMAC returns an unkeyed HMAC engine over the named algorithm.
func NewHMAC(name string) (*HMAC, error) {
	alg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return &HMAC{alg: alg}, nil
}

func (m *HMAC) Name() string { return "HMAC-" + m.alg.Name }

func (m *HMAC) Size() int { return m.alg.Size }

func (m *HMAC) Init(key []byte) error {
	m.mac = hmac.New(m.alg.New, key)
	return nil
}

func (m *HMAC) Update(p ...[]byte) {
	if m.mac == nil {
		return
	}
	for _, b := range p {
		m.mac.Write(b)
	}
}

// Finish writes the tag into out[:Size()]. The engine keeps its key and is
// ready for the next message.
func (m *HMAC) Finish(out []byte) error {
	if m.mac == nil {
		return ErrNotKeyed
	}
	if len(out) < m.alg.Size {
		m.mac.Reset()
		return ErrShortBuffer
	}
	m.mac.Sum(out[:0])
	m.mac.Reset()
	return nil
}
