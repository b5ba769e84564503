// Package entropy provides the entropy sources that seed DRBG instances:
// the operating system, CPU timing jitter, public HTTP beacons and a
// conditioned mix of several sources.
package entropy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/hashicorp/go-hclog"
)

// Source is an io.Reader that fills p completely or returns an error.
type Source interface {
	io.Reader

	// Tag describes the source for provenance records. It never contains
	// secret material.
	Tag() string
}

var ErrUnknownMode = errors.New("entropy: unknown mode")

type osSource struct{}

// OS returns the operating system CSPRNG.
func OS() Source { return osSource{} }

func (osSource) Read(p []byte) (int, error) { return io.ReadFull(rand.Reader, p) }

func (osSource) Tag() string { return "mode:os" }

// Jitter gathers entropy from scheduling and timer jitter. Each output
// block is SHA-256 over Rounds timing samples.
type Jitter struct {
	Rounds int
}

func NewJitter(rounds int) *Jitter {
	if rounds <= 0 {
		rounds = 32
	}
	return &Jitter{Rounds: rounds}
}

func (j *Jitter) Tag() string { return "mode:jitter" }

func (j *Jitter) Read(p []byte) (int, error) {
	for off := 0; off < len(p); off += sha256.Size {
		block := j.sample()
		copy(p[off:], block[:])
	}
	return len(p), nil
}

func (j *Jitter) sample() [sha256.Size]byte {
	h := sha256.New()
	tmp := make([]byte, 8)
	for i := 0; i < j.Rounds; i++ {
		t0 := time.Now()
		spin := 100 + (i % 17)
		for k := 0; k < spin; k++ {
		}
		time.Sleep(0)
		binary.LittleEndian.PutUint64(tmp, uint64(time.Since(t0).Nanoseconds()))
		h.Write(tmp)
		binary.LittleEndian.PutUint64(tmp, uint64(time.Now().UnixNano()))
		h.Write(tmp)
	}
	var out [sha256.Size]byte
	h.Sum(out[:0])
	return out
}

// FromMode builds the health-checked source for a mode name: os, jitter,
// http or mix. urls are the beacon URLs used by http and mix; the beacon
// is always mixed with the OS source and skipped when it has no fresh
// value.
func FromMode(mode string, urls []string, logger log.Logger) (Source, error) {
	if logger == nil {
		logger = log.NewNullLogger()
	}

	var src Source
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "os":
		src = OS()
	case "jitter":
		src = NewJitter(32)
	case "http":
		if len(urls) == 0 {
			return nil, fmt.Errorf("entropy: mode http needs at least one URL")
		}
		// a beacon is public and changes slowly; it never seeds alone
		src = NewMix(OS(), Optional(NewHTTP(urls, logger.Named("http")), logger))
	case "mix":
		parts := []Source{OS(), NewJitter(48)}
		if len(urls) > 0 {
			parts = append(parts, Optional(NewHTTP(urls, logger.Named("http")), logger))
		}
		src = NewMix(parts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return NewHealthChecked(src, DefaultCutoff), nil
}

// URLTag is a short stable fingerprint of a list of URLs.
func URLTag(urls []string) string {
	h := sha256.New()
	for _, s := range urls {
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
