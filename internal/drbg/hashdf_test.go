package drbg

import (
	"encoding/hex"
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Digest(t *testing.T) Digest {
	t.Helper()
	d, err := DefaultEngines().Digest("SHA-256")
	require.NoError(t, err)
	return d
}

func TestHashDF(t *testing.T) {
	d := sha256Digest(t)

	cases := []struct {
		name   string
		inputs [][]byte
		size   int
		want   string
	}{
		{"one block", [][]byte{[]byte("abc")}, 32, "8644b5386fd50e9f79cd992055903e26e2387d0ae63a3fb6abfaa08bb0182478"},
		{"truncated second block", [][]byte{[]byte("abc")}, 40, "7a1a2c0bc28d8340b6ba3258f7ed816077b38afa102a6bf8fd562a71d86b489d7f4ae3b9b6bd801a"},
		{"two blocks", [][]byte{[]byte("abc")}, 64, "602e88b23c4e02ce2ad0d73149a8cd2e12774964c2ce81b3ab6a78b7dec2067c4ef3b0e8143a1c53aefe8430425a93b80a71e962065d1d3dac3ce8611f8f7314"},
		{"split input", [][]byte{[]byte("a"), []byte("bc")}, 64, "602e88b23c4e02ce2ad0d73149a8cd2e12774964c2ce81b3ab6a78b7dec2067c4ef3b0e8143a1c53aefe8430425a93b80a71e962065d1d3dac3ce8611f8f7314"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := make([]byte, tc.size)
			require.NoError(t, hashDF(d, out, tc.inputs...))
			assert.Equal(t, tc.want, hex.EncodeToString(out))
		})
	}
}

func TestHashDFSeedLengths(t *testing.T) {
	d := sha256Digest(t)
	for _, n := range []int{1, 31, 55, 111, 255 * 32} {
		out := make([]byte, n)
		require.NoError(t, hashDF(d, out, []byte("seed")))
		assert.Len(t, out, n)
	}
}

func TestHashDFTooLong(t *testing.T) {
	d := sha256Digest(t)
	out := make([]byte, 255*32+1)
	assert.Panics(t, func() { _ = hashDF(d, out, []byte("seed")) })
}

func TestHashDFEngineFailure(t *testing.T) {
	d := &flakyDigest{Digest: sha256Digest(t), failAfter: 1}
	err := hashDF(d, make([]byte, 55), []byte("seed"))
	assert.ErrorIs(t, err, errEngine)
}

func addModReference(acc []byte, addends ...[]byte) []byte {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(acc)))
	sum := new(big.Int).SetBytes(acc)
	for _, a := range addends {
		sum.Add(sum, new(big.Int).SetBytes(a))
	}
	sum.Mod(sum, mod)
	out := make([]byte, len(acc))
	sum.FillBytes(out)
	return out
}

func TestAddModMatchesIntegerAddition(t *testing.T) {
	rng := rand.New(rand.NewPCG(90, 1))
	fill := func(n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(rng.UintN(256))
		}
		return b
	}

	for size := 28; size <= 64; size++ {
		for i := 0; i < 20; i++ {
			acc := fill(size)
			a := fill(1 + rng.IntN(size))
			b := fill(1 + rng.IntN(size))

			together := append([]byte(nil), acc...)
			addMod(together, a, b)

			stepwise := append([]byte(nil), acc...)
			addMod(stepwise, a)
			addMod(stepwise, b)

			require.Equal(t, stepwise, together, "size %d", size)
			require.Equal(t, addModReference(acc, a, b), together, "size %d", size)
		}
	}
}

func TestAddModWraps(t *testing.T) {
	acc := repeat(0xff, 55)
	addMod(acc, []byte{0x01})
	assert.Equal(t, make([]byte, 55), acc)

	acc = []byte{0x00, 0xff, 0xff}
	addMod(acc, []byte{0x01})
	assert.Equal(t, []byte{0x01, 0x00, 0x00}, acc)
}

func TestAddModIgnoresExtraHighBytes(t *testing.T) {
	acc := []byte{0x00, 0x01}
	addMod(acc, []byte{0xaa, 0xbb, 0x00, 0x02})
	assert.Equal(t, []byte{0x00, 0x03}, acc)
}

func TestCounterBytes(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{1, []byte{0x01}},
		{255, []byte{0xff}},
		{256, []byte{0x01, 0x00}},
		{65536, []byte{0x01, 0x00, 0x00}},
		{1 << 48, []byte{0x01, 0, 0, 0, 0, 0, 0}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, counterBytes(tc.n), "n=%d", tc.n)
	}
}
