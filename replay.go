package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"rng-drbg/internal/drbg"
)

var errNotReplayable = errors.New("transaction was not generated from caller material")

// generate fills out in chunks of at most drbg.MaxBytesPerRequest. Only
// the first chunk sees additionalInput and predictionResistance. It returns
// the reseed counter after the last chunk; on error out is zeroed.
func generate(d *drbg.DRBG, out, additionalInput []byte, predictionResistance bool) (uint64, error) {
	off := 0
	for {
		end := min(off+drbg.MaxBytesPerRequest, len(out))
		counter, err := d.GenerateCounted(out[off:end], additionalInput, predictionResistance)
		if err != nil {
			clear(out)
			return 0, err
		}
		if end == len(out) {
			return counter, nil
		}
		additionalInput, predictionResistance = nil, false
		off = end
	}
}

// reproMaterial is the caller supplied seed material of a repro request.
type reproMaterial struct {
	config          string
	entropy         []byte
	nonce           []byte
	personalization []byte
}

// newReproDRBG builds a DRBG without an entropy source and instantiates it
// from m.
func newReproDRBG(m reproMaterial) (*drbg.DRBG, error) {
	p, err := drbg.ParseConfig(m.config)
	if err != nil {
		return nil, err
	}
	d, err := drbg.New(p)
	if err != nil {
		return nil, err
	}
	if err := d.InstantiateWithEntropy(m.entropy, m.nonce, m.personalization); err != nil {
		return nil, err
	}
	return d, nil
}

// replay regenerates the output of a replayable transaction.
func replay(tx *Transaction) ([]byte, error) {
	if !tx.Replayable() {
		return nil, errNotReplayable
	}
	pv := tx.Provenance
	var m reproMaterial
	m.config = pv.Config
	for _, f := range []struct {
		dst *[]byte
		hex string
	}{
		{&m.entropy, pv.EntropyHex},
		{&m.nonce, pv.NonceHex},
		{&m.personalization, pv.PersonalizationHex},
	} {
		b, err := hex.DecodeString(f.hex)
		if err != nil {
			return nil, fmt.Errorf("stored provenance of %s: %w", tx.TxID, err)
		}
		*f.dst = b
	}
	additional, err := hex.DecodeString(pv.AdditionalHex)
	if err != nil {
		return nil, fmt.Errorf("stored provenance of %s: %w", tx.TxID, err)
	}

	d, err := newReproDRBG(m)
	if err != nil {
		return nil, err
	}
	defer d.Uninstantiate()

	out := make([]byte, tx.Count)
	if _, err := generate(d, out, additional, pv.PredictionResistance); err != nil {
		return nil, err
	}
	return out, nil
}

func outputHash(out []byte) string {
	h := sha256.Sum256(out)
	return hex.EncodeToString(h[:])
}

// publishedHash binds the output hash to the profile that produced it.
func publishedHash(outHash, profile string) string {
	h := sha256.New()
	h.Write([]byte(outHash))
	h.Write([]byte{0})
	h.Write([]byte(profile))
	h.Write([]byte("rng-drbg/published/v1"))
	return hex.EncodeToString(h.Sum(nil))
}
