package drbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	p, err := Resolve(Params{})
	require.NoError(t, err)

	assert.Equal(t, MechanismHash, p.Mechanism)
	assert.Equal(t, "SHA-256", p.Algorithm)
	assert.Equal(t, Strength128, p.Strength)
	assert.Equal(t, CapabilityNone, p.Capability)
	assert.Equal(t, 32, p.OutLen)
	assert.Equal(t, 55, p.SeedLen)
	assert.Equal(t, 16, p.MinEntropyLen)
	assert.Equal(t, 8, p.NonceLen)
	assert.EqualValues(t, MaxReseedInterval, p.ReseedInterval)
	assert.Equal(t, "Hash_DRBG,SHA-256,128,none", p.String())
}

func TestResolveStrengthRounding(t *testing.T) {
	cases := []struct {
		requested int
		want      SecurityStrength
	}{
		{1, Strength112},
		{112, Strength112},
		{113, Strength128},
		{128, Strength128},
		{129, Strength192},
		{192, Strength192},
		{193, Strength256},
		{256, Strength256},
	}
	for _, tc := range cases {
		p, err := Resolve(Params{Algorithm: "SHA-512", Strength: tc.requested})
		require.NoError(t, err, "strength %d", tc.requested)
		assert.Equal(t, tc.want, p.Strength, "strength %d", tc.requested)
		assert.Equal(t, int(tc.want)/8, p.MinEntropyLen)
		assert.Equal(t, int(tc.want)/16, p.NonceLen)
	}
}

func TestResolveCeilings(t *testing.T) {
	cases := map[string]SecurityStrength{
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
	for alg, ceiling := range cases {
		p, err := Resolve(Params{Algorithm: alg, Strength: int(ceiling)})
		require.NoError(t, err, alg)
		assert.Equal(t, ceiling, p.Strength, alg)

		if ceiling < Strength256 {
			_, err := Resolve(Params{Algorithm: alg, Strength: int(ceiling) + 1})
			var cerr *ConfigurationError
			assert.ErrorAs(t, err, &cerr, alg)
		}
	}
}

func TestResolveSeedLen(t *testing.T) {
	p, err := Resolve(Params{Algorithm: "SHA-384"})
	require.NoError(t, err)
	assert.Equal(t, 111, p.SeedLen)

	p, err = Resolve(Params{Mechanism: MechanismHMAC, Algorithm: "SHA-384"})
	require.NoError(t, err)
	assert.Equal(t, 48, p.SeedLen)
}

func TestResolveErrors(t *testing.T) {
	cases := []struct {
		name   string
		params Params
	}{
		{"ctr", Params{Mechanism: MechanismCTR}},
		{"unknown mechanism", Params{Mechanism: Mechanism(9)}},
		{"unknown algorithm", Params{Algorithm: "MD5"}},
		{"negative strength", Params{Strength: -1}},
		{"strength above 256", Params{Strength: 257}},
		{"strength above ceiling", Params{Algorithm: "SHA-224", Strength: 256}},
		{"unknown capability", Params{Capability: Capability(7)}},
		{"interval too large", Params{ReseedInterval: MaxReseedInterval + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.params)
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestCapability(t *testing.T) {
	assert.False(t, CapabilityNone.SupportsReseed())
	assert.False(t, CapabilityNone.SupportsPredictionResistance())
	assert.True(t, CapabilityReseedOnly.SupportsReseed())
	assert.False(t, CapabilityReseedOnly.SupportsPredictionResistance())
	assert.True(t, CapabilityPRAndReseed.SupportsReseed())
	assert.True(t, CapabilityPRAndReseed.SupportsPredictionResistance())
}
