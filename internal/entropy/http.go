package entropy

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
	log "github.com/hashicorp/go-hclog"
	"golang.org/x/crypto/sha3"
)

const (
	httpLabel   = "rng-drbg/entropy/http/v1"
	maxBodySize = 64 << 10
)

var ErrNoBeacon = errors.New("entropy: no beacon answered")

// ErrStaleBeacon is returned when every beacon still serves the value of
// the previous read. It wraps ErrNoBeacon.
var ErrStaleBeacon = fmt.Errorf("%w: beacon value unchanged since the last read", ErrNoBeacon)

// HTTP draws seed material from public randomness beacons. A body of 64
// hex digits is decoded, a decimal integer is taken as its 8 little-endian
// bytes, anything else is hashed. The first URL that answers wins; the
// material is expanded to the requested length with SHAKE-256.
//
// A beacon value is used once: a read that sees the value of the previous
// read fails with ErrStaleBeacon.
type HTTP struct {
	URLs []string

	// Retries bounds the number of retry rounds over all URLs.
	Retries         uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	client *http.Client
	logger log.Logger

	mu   sync.Mutex
	last [sha256.Size]byte
	seen bool
}

func NewHTTP(urls []string, logger log.Logger) *HTTP {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 3 * time.Second

	clean := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	return &HTTP{
		URLs:            clean,
		Retries:         3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		client:          client,
		logger:          logger,
	}
}

func (h *HTTP) Tag() string { return "mode:http:" + URLTag(h.URLs) }

func (h *HTTP) Read(p []byte) (int, error) {
	return h.ReadContext(context.Background(), p)
}

// ReadContext is Read with cancellation of the beacon requests.
func (h *HTTP) ReadContext(ctx context.Context, p []byte) (int, error) {
	raw, err := h.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	defer clear(raw)

	sum := sha256.Sum256(raw)
	h.mu.Lock()
	stale := h.seen && sum == h.last
	h.last, h.seen = sum, true
	h.mu.Unlock()
	if stale {
		h.logger.Debug("beacon has not moved on since the last read")
		return 0, ErrStaleBeacon
	}

	x := sha3.NewShake256()
	x.Write([]byte(httpLabel))
	x.Write(raw)
	if _, err := io.ReadFull(x, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Fetch returns the raw material of the first beacon that answers,
// retrying all URLs with exponential backoff.
func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	if len(h.URLs) == 0 {
		return nil, fmt.Errorf("%w: no URLs configured", ErrNoBeacon)
	}

	var b backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(h.InitialInterval),
		backoff.WithMaxInterval(h.MaxInterval),
	)
	b = backoff.WithContext(backoff.WithMaxRetries(b, h.Retries), ctx)

	var raw []byte
	err := backoff.Retry(func() error {
		for _, u := range h.URLs {
			got, err := h.fetchOne(ctx, u)
			if err != nil {
				h.logger.Debug("beacon unavailable", "url", u, "error", err)
				continue
			}
			raw = got
			return nil
		}
		return ErrNoBeacon
	}, b)
	if err != nil {
		h.logger.Warn("no beacon answered", "urls", len(h.URLs), "error", err)
		return nil, err
	}
	return raw, nil
}

func (h *HTTP) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return beaconMaterial(strings.TrimSpace(string(body)))
}

func beaconMaterial(body string) ([]byte, error) {
	if body == "" {
		return nil, errors.New("empty body")
	}
	if len(body) == 64 {
		if b, err := hex.DecodeString(body); err == nil {
			return b, nil
		}
	}
	if iv, err := strconv.ParseInt(body, 10, 64); err == nil {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(iv))
		return buf, nil
	}
	sum := sha256.Sum256([]byte(body))
	return sum[:], nil
}
