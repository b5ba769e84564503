package entropy

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	log "github.com/hashicorp/go-hclog"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
)

const mixLabel = "rng-drbg/entropy/mix/v1"

// minMixRead is the least each source contributes to one mixed read.
const minMixRead = 32

// Mix reads every source concurrently and conditions the concatenation with
// SHAKE-256. A failing source fails the whole read unless it was wrapped
// with Optional; at least one source must contribute.
type Mix struct {
	sources []Source
}

type optionalSource struct {
	Source
	logger log.Logger
}

// Optional marks src as a best-effort contributor to a Mix: when it fails
// the read goes on without it.
func Optional(src Source, logger log.Logger) Source {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &optionalSource{Source: src, logger: logger}
}

func NewMix(sources ...Source) *Mix {
	return &Mix{sources: sources}
}

func (m *Mix) Tag() string {
	tags := make([]string, len(m.sources))
	for i, s := range m.sources {
		tags[i] = s.Tag()
	}
	return "mode:mix[" + strings.Join(tags, ";") + "]"
}

func (m *Mix) Read(p []byte) (int, error) {
	if len(m.sources) == 0 {
		return 0, fmt.Errorf("entropy: mix has no sources")
	}

	n := max(len(p), minMixRead)
	parts := make([][]byte, len(m.sources))
	var g errgroup.Group
	for i, src := range m.sources {
		g.Go(func() error {
			buf := make([]byte, n)
			if _, err := io.ReadFull(src, buf); err != nil {
				if opt, ok := src.(*optionalSource); ok {
					opt.logger.Debug("optional source skipped", "source", src.Tag(), "error", err)
					return nil
				}
				return fmt.Errorf("%s: %w", src.Tag(), err)
			}
			parts[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	contributed := 0
	for _, part := range parts {
		if part != nil {
			contributed++
		}
	}
	if contributed == 0 {
		return 0, fmt.Errorf("entropy: no source of %s contributed", m.Tag())
	}

	x := sha3.NewShake256()
	x.Write([]byte(mixLabel))
	var lenBuf [4]byte
	for _, part := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(part)))
		x.Write(lenBuf[:])
		x.Write(part)
		clear(part)
	}
	if _, err := io.ReadFull(x, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
