package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	log "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"rng-drbg/internal/drbg"
)

// Config holds the service settings read from the environment.
type Config struct {
	Addr           string
	StorePath      string
	DRBG           drbg.Params
	DRBGString     string
	EntropyMode    string
	EntropyURLs    []string
	ReseedInterval uint64
	LogLevel       log.Level
	CORSOrigins    []string
	MaxRequest     int
}

const (
	DefaultAddr       = ":4040"
	DefaultStore      = "./store.json"
	DefaultDRBG       = "Hash_DRBG,SHA-256,256,reseed_only"
	DefaultMaxRequest = 1 << 20
)

var entropyModes = map[string]bool{"os": true, "jitter": true, "http": true, "mix": true}

// Load reads .env files (a missing file is not an error) and then the
// process environment. With no files given ".env" is tried.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Every invalid value is reported.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var merr *multierror.Error
	c := &Config{
		Addr:        get("RNG_ADDR", DefaultAddr),
		StorePath:   get("RNG_STORE", DefaultStore),
		DRBGString:  get("RNG_DRBG", DefaultDRBG),
		EntropyMode: strings.ToLower(get("RNG_ENTROPY", "os")),
		EntropyURLs: splitList(get("RNG_ENTROPY_HTTP", "")),
		CORSOrigins: splitList(get("RNG_CORS_ORIGINS", "*")),
		MaxRequest:  DefaultMaxRequest,
	}

	params, err := drbg.ParseConfig(c.DRBGString)
	if err == nil {
		_, err = drbg.Resolve(params)
	}
	if err != nil {
		merr = multierror.Append(merr, fmt.Errorf("RNG_DRBG: %w", err))
	}
	c.DRBG = params

	if !entropyModes[c.EntropyMode] {
		merr = multierror.Append(merr, fmt.Errorf("RNG_ENTROPY: unknown mode %q", c.EntropyMode))
	}
	if c.EntropyMode == "http" && len(c.EntropyURLs) == 0 {
		merr = multierror.Append(merr, errors.New("RNG_ENTROPY_HTTP: mode http needs at least one URL"))
	}

	if v := get("RNG_RESEED_INTERVAL", "0"); v != "0" {
		n, err := strconv.ParseUint(v, 10, 64)
		switch {
		case err != nil:
			merr = multierror.Append(merr, fmt.Errorf("RNG_RESEED_INTERVAL: %w", err))
		case n > drbg.MaxReseedInterval:
			merr = multierror.Append(merr, fmt.Errorf("RNG_RESEED_INTERVAL: %d exceeds 2^48", n))
		default:
			c.ReseedInterval = n
		}
	}
	c.DRBG.ReseedInterval = c.ReseedInterval

	level := get("RNG_LOG_LEVEL", "info")
	c.LogLevel = log.LevelFromString(level)
	if c.LogLevel == log.NoLevel {
		merr = multierror.Append(merr, fmt.Errorf("RNG_LOG_LEVEL: unknown level %q", level))
	}

	if v := get("RNG_MAX_REQUEST", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			merr = multierror.Append(merr, fmt.Errorf("RNG_MAX_REQUEST: want a positive byte count, got %q", v))
		} else {
			c.MaxRequest = n
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
