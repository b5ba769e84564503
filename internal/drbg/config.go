package drbg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"rng-drbg/internal/digest"
)

var mechanismNames = map[string]Mechanism{
	"hash_drbg": MechanismHash,
	"hash":      MechanismHash,
	"hmac_drbg": MechanismHMAC,
	"hmac":      MechanismHMAC,
	"ctr_drbg":  MechanismCTR,
	"ctr":       MechanismCTR,
}

var capabilityNames = map[string]Capability{
	"none":          CapabilityNone,
	"reseed_only":   CapabilityReseedOnly,
	"pr_and_reseed": CapabilityPRAndReseed,
}

// ParseConfig parses a configuration string such as
// "HMAC_DRBG,SHA-512,256,pr_and_reseed" into Params. Aspects are
// comma-separated, case-insensitive and may appear in any order; omitted
// aspects keep their defaults. Every duplicate or unknown aspect is
// reported in one *ConfigurationError.
//
// use_df and no_df are recognised only so that CTR_DRBG strings parse far
// enough to be rejected by Resolve.
func ParseConfig(s string) (Params, error) {
	var p Params
	if strings.TrimSpace(s) == "" {
		return p, nil
	}

	var merr *multierror.Error
	seen := make(map[string]string)
	claim := func(aspect, tok string) bool {
		if prev, ok := seen[aspect]; ok {
			merr = multierror.Append(merr, fmt.Errorf("duplicate %s %q (already set by %q)", aspect, tok, prev))
			return false
		}
		seen[aspect] = tok
		return true
	}

	df := ""
	for _, raw := range strings.Split(s, ",") {
		tok := strings.TrimSpace(raw)
		key := strings.ToLower(tok)

		if tok == "" {
			merr = multierror.Append(merr, fmt.Errorf("empty aspect in %q", s))
			continue
		}
		if m, ok := mechanismNames[key]; ok {
			if claim("mechanism", tok) {
				p.Mechanism = m
			}
			continue
		}
		if c, ok := capabilityNames[key]; ok {
			if claim("capability", tok) {
				p.Capability = c
			}
			continue
		}
		if key == "use_df" || key == "no_df" {
			if claim("derivation function", tok) {
				df = key
			}
			continue
		}
		if isDecimal(key) {
			n, err := strconv.Atoi(key)
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("strength %q: %w", tok, err))
				continue
			}
			if n == 0 {
				merr = multierror.Append(merr, fmt.Errorf("strength %q: must be positive", tok))
				continue
			}
			if claim("strength", tok) {
				p.Strength = n
			}
			continue
		}
		if name, err := digest.Canonical(tok); err == nil {
			if claim("algorithm", tok) {
				p.Algorithm = name
			}
			continue
		}
		merr = multierror.Append(merr, fmt.Errorf("unknown aspect %q", tok))
	}

	if df != "" && p.Mechanism != MechanismCTR {
		merr = multierror.Append(merr, fmt.Errorf("%s only applies to %s", df, MechanismCTR))
	}
	if err := merr.ErrorOrNil(); err != nil {
		return Params{}, &ConfigurationError{Err: err}
	}
	return p, nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
