package drbg

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

var errEngine = errors.New("engine exploded")

// flakyDigest fails every Finish call after the first failAfter calls.
// A negative failAfter never fails.
type flakyDigest struct {
	Digest
	failAfter int
	calls     int
}

func (f *flakyDigest) Finish(out []byte) error {
	f.calls++
	if f.failAfter >= 0 && f.calls > f.failAfter {
		// drain the pending message so the engine stays usable
		_ = f.Digest.Finish(make([]byte, f.Digest.Size()))
		return errEngine
	}
	return f.Digest.Finish(out)
}

type flakyMAC struct {
	MAC
	failAfter int
	calls     int
}

func (f *flakyMAC) Finish(out []byte) error {
	f.calls++
	if f.failAfter >= 0 && f.calls > f.failAfter {
		_ = f.MAC.Finish(make([]byte, f.MAC.Size()))
		return errEngine
	}
	return f.MAC.Finish(out)
}

// flakyEngines hands out engines that share one failure switch.
type flakyEngines struct {
	digest *flakyDigest
	mac    *flakyMAC
}

func (f *flakyEngines) Digest(algorithm string) (Digest, error) {
	d, err := DefaultEngines().Digest(algorithm)
	if err != nil {
		return nil, err
	}
	f.digest = &flakyDigest{Digest: d, failAfter: -1}
	return f.digest, nil
}

func (f *flakyEngines) MAC(algorithm string) (MAC, error) {
	m, err := DefaultEngines().MAC(algorithm)
	if err != nil {
		return nil, err
	}
	f.mac = &flakyMAC{MAC: m, failAfter: -1}
	return f.mac, nil
}

func (f *flakyEngines) breakNow() {
	if f.digest != nil {
		f.digest.failAfter, f.digest.calls = 0, 0
	}
	if f.mac != nil {
		f.mac.failAfter, f.mac.calls = 0, 0
	}
}

func (f *flakyEngines) repair() {
	if f.digest != nil {
		f.digest.failAfter = -1
	}
	if f.mac != nil {
		f.mac.failAfter = -1
	}
}

// countingReader wraps a scripted entropy stream and records how much was
// consumed.
type countingReader struct {
	r    io.Reader
	read int
}

func newScripted(parts ...[]byte) *countingReader {
	return &countingReader{r: bytes.NewReader(bytes.Join(parts, nil))}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func seq(from, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(from + i)
	}
	return b
}

func repeat(v byte, n int) []byte { return bytes.Repeat([]byte{v}, n) }

func newMechanism(t *testing.T, mech Mechanism, algorithm string) Generator {
	t.Helper()
	profile, err := Resolve(Params{Mechanism: mech, Algorithm: algorithm})
	require.NoError(t, err)
	gen, err := newGenerator(profile, DefaultEngines())
	require.NoError(t, err)
	return gen
}
