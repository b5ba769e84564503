package drbg

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	metrics "github.com/armon/go-metrics"
	log "github.com/hashicorp/go-hclog"
)

// DRBG wraps a mechanism with strength negotiation, entropy acquisition,
// reseed scheduling and capability checks. It is safe for concurrent use.
type DRBG struct {
	mu              sync.Mutex
	profile         Profile
	gen             Generator
	source          io.Reader
	engines         EngineFactory
	logger          log.Logger
	personalization []byte

	// failure is the engine error that moved the DRBG into the error
	// state; nil while healthy.
	failure error
}

// Option configures a DRBG at construction.
type Option func(*DRBG)

// WithEntropySource sets the reader entropy and nonces are drawn from.
// Without a source the DRBG can only be seeded with caller material.
func WithEntropySource(r io.Reader) Option {
	return func(d *DRBG) { d.source = r }
}

func WithLogger(l log.Logger) Option {
	return func(d *DRBG) { d.logger = l }
}

// WithEngines replaces the digest and MAC factory.
func WithEngines(f EngineFactory) Option {
	return func(d *DRBG) { d.engines = f }
}

// New resolves p and builds an uninstantiated DRBG.
func New(p Params, opts ...Option) (*DRBG, error) {
	profile, err := Resolve(p)
	if err != nil {
		return nil, err
	}
	if int64(len(p.Personalization)) > MaxInputLen {
		return nil, fmt.Errorf("personalization string: %w", ErrRequestTooLarge)
	}

	d := &DRBG{
		profile:         profile,
		engines:         DefaultEngines(),
		logger:          log.NewNullLogger(),
		personalization: append([]byte(nil), p.Personalization...),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.gen, err = newGenerator(profile, d.engines)
	if err != nil {
		var cerr *ConfigurationError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, &ConfigurationError{Err: err}
	}
	return d, nil
}

func (d *DRBG) Profile() Profile { return d.profile }

func (d *DRBG) ReseedCounter() uint64 { return d.gen.ReseedCounter() }

func (d *DRBG) Instantiated() bool { return d.gen.Instantiated() }

// Instantiate seeds the DRBG with MinEntropyLen bytes of entropy and
// NonceLen bytes of nonce from the entropy source. A nil personalization
// falls back to the one given in Params.
func (d *DRBG) Instantiate(personalization []byte) error {
	if int64(len(personalization)) > MaxInputLen {
		return fmt.Errorf("personalization string: %w", ErrRequestTooLarge)
	}
	if d.source == nil {
		return ErrNoEntropySource
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if personalization == nil {
		personalization = d.personalization
	}
	return d.instantiateFromSource(personalization)
}

// InstantiateWithEntropy seeds the DRBG from caller supplied material.
func (d *DRBG) InstantiateWithEntropy(entropy, nonce, personalization []byte) error {
	if len(entropy) < d.profile.MinEntropyLen {
		return fmt.Errorf("%w: %d bytes, need %d", ErrEntropyTooShort, len(entropy), d.profile.MinEntropyLen)
	}
	for _, in := range [][]byte{entropy, nonce, personalization} {
		if int64(len(in)) > MaxInputLen {
			return ErrRequestTooLarge
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.instantiateLocked(entropy, nonce, personalization)
}

func (d *DRBG) instantiateFromSource(personalization []byte) error {
	entropy, err := d.readEntropy(d.profile.MinEntropyLen)
	if err != nil {
		return err
	}
	defer clear(entropy)

	nonce, err := d.readEntropy(d.profile.NonceLen)
	if err != nil {
		return err
	}
	defer clear(nonce)

	return d.instantiateLocked(entropy, nonce, personalization)
}

func (d *DRBG) instantiateLocked(entropy, nonce, personalization []byte) error {
	if err := d.gen.Instantiate(entropy, nonce, personalization); err != nil {
		return d.fail(err)
	}
	d.failure = nil
	d.logger.Debug("instantiated", "profile", d.profile.String())
	return nil
}

// Reseed mixes fresh entropy from the source and additionalInput into the
// state.
func (d *DRBG) Reseed(additionalInput []byte) error {
	if !d.profile.Capability.SupportsReseed() {
		return &CapabilityError{Capability: d.profile.Capability, Requested: "reseed"}
	}
	if int64(len(additionalInput)) > MaxInputLen {
		return fmt.Errorf("additional input: %w", ErrRequestTooLarge)
	}
	if d.source == nil {
		return ErrNoEntropySource
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	return d.reseedLocked(additionalInput)
}

// ReseedWithEntropy reseeds from caller supplied entropy.
func (d *DRBG) ReseedWithEntropy(entropy, additionalInput []byte) error {
	if !d.profile.Capability.SupportsReseed() {
		return &CapabilityError{Capability: d.profile.Capability, Requested: "reseed"}
	}
	if len(entropy) < d.profile.MinEntropyLen {
		return fmt.Errorf("%w: %d bytes, need %d", ErrEntropyTooShort, len(entropy), d.profile.MinEntropyLen)
	}
	if int64(len(entropy)) > MaxInputLen || int64(len(additionalInput)) > MaxInputLen {
		return ErrRequestTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if err := d.gen.Reseed(entropy, additionalInput); err != nil {
		return d.fail(err)
	}
	metrics.IncrCounter([]string{"drbg", "reseed"}, 1)
	d.logger.Debug("reseeded", "profile", d.profile.String())
	return nil
}

func (d *DRBG) reseedLocked(additionalInput []byte) error {
	entropy, err := d.readEntropy(d.profile.MinEntropyLen)
	if err != nil {
		return err
	}
	defer clear(entropy)

	if err := d.gen.Reseed(entropy, additionalInput); err != nil {
		return d.fail(err)
	}
	metrics.IncrCounter([]string{"drbg", "reseed"}, 1)
	d.logger.Debug("reseeded", "profile", d.profile.String())
	return nil
}

// Generate fills out with pseudorandom bytes. If predictionResistance is
// set, or the reseed interval is exhausted, the DRBG reseeds first and
// additionalInput is consumed by that reseed. Uninstantiated DRBGs with an
// entropy source are instantiated on first use.
func (d *DRBG) Generate(out, additionalInput []byte, predictionResistance bool) error {
	_, err := d.GenerateCounted(out, additionalInput, predictionResistance)
	return err
}

// GenerateCounted is Generate that also returns the reseed counter as it
// stood right after this request, read under the same lock.
func (d *DRBG) GenerateCounted(out, additionalInput []byte, predictionResistance bool) (uint64, error) {
	if len(out) > MaxBytesPerRequest {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrRequestTooLarge, len(out), MaxBytesPerRequest)
	}
	if int64(len(additionalInput)) > MaxInputLen {
		return 0, fmt.Errorf("additional input: %w", ErrRequestTooLarge)
	}
	if predictionResistance && !d.profile.Capability.SupportsPredictionResistance() {
		return 0, &CapabilityError{Capability: d.profile.Capability, Requested: "prediction resistance"}
	}
	defer metrics.MeasureSince([]string{"drbg", "generate"}, time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.generateLocked(out, additionalInput, predictionResistance); err != nil {
		clear(out)
		return 0, err
	}
	metrics.IncrCounter([]string{"drbg", "generate", "bytes"}, float32(len(out)))
	return d.gen.ReseedCounter(), nil
}

func (d *DRBG) generateLocked(out, additionalInput []byte, predictionResistance bool) error {
	if d.failure != nil {
		return fmt.Errorf("%w: %v", ErrFailed, d.failure)
	}

	if !d.gen.Instantiated() {
		if d.source == nil {
			return ErrUninstantiated
		}
		if err := d.instantiateFromSource(d.personalization); err != nil {
			return err
		}
	}

	if predictionResistance || d.gen.ReseedCounter() > d.profile.ReseedInterval {
		if d.source == nil || !d.profile.Capability.SupportsReseed() {
			return ErrReseedRequired
		}
		if err := d.reseedLocked(additionalInput); err != nil {
			return err
		}
		additionalInput = nil
	}

	if err := d.gen.Generate(out, additionalInput); err != nil {
		return d.fail(err)
	}
	return nil
}

// Read implements io.Reader. Requests larger than MaxBytesPerRequest are
// split; if any chunk fails p is zeroed and no bytes are reported.
func (d *DRBG) Read(p []byte) (int, error) {
	for off := 0; off < len(p); off += MaxBytesPerRequest {
		end := min(off+MaxBytesPerRequest, len(p))
		if err := d.Generate(p[off:end], nil, false); err != nil {
			clear(p)
			return 0, err
		}
	}
	return len(p), nil
}

// Uninstantiate wipes the working state. The DRBG may be instantiated
// again afterwards.
func (d *DRBG) Uninstantiate() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen.Wipe()
	d.failure = nil
}

func (d *DRBG) usable() error {
	if d.failure != nil {
		return fmt.Errorf("%w: %v", ErrFailed, d.failure)
	}
	if !d.gen.Instantiated() {
		return ErrUninstantiated
	}
	return nil
}

// fail latches engine failures. Other errors pass through untouched.
func (d *DRBG) fail(err error) error {
	var ierr *InternalError
	if errors.As(err, &ierr) {
		d.failure = err
		metrics.IncrCounter([]string{"drbg", "failure"}, 1)
		d.logger.Error("engine failure, generator disabled", "op", ierr.Op, "error", ierr.Err)
	}
	return err
}

func (d *DRBG) readEntropy(n int) ([]byte, error) {
	defer metrics.MeasureSince([]string{"entropy", "read"}, time.Now())

	buf := make([]byte, n)
	if _, err := io.ReadFull(d.source, buf); err != nil {
		return nil, fmt.Errorf("reading entropy: %w", err)
	}
	return buf, nil
}
