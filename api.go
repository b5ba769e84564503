package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/google/uuid"
	log "github.com/hashicorp/go-hclog"

	"rng-drbg/internal/config"
	"rng-drbg/internal/drbg"
	"rng-drbg/internal/entropy"
	"rng-drbg/internal/nist"
)

type server struct {
	cfg       *config.Config
	logger    log.Logger
	ledger    *Ledger
	instances *Registry
	sink      *metrics.InmemSink

	// sources builds the entropy source for a mode name.
	sources   func(mode string) (entropy.Source, error)
	defaultID string
}

// newServer opens the ledger and creates the default instance described by
// cfg.
func newServer(cfg *config.Config, logger log.Logger, sink *metrics.InmemSink) (*server, error) {
	ledger, err := OpenLedger(cfg.StorePath, logger.Named("ledger"))
	if err != nil {
		return nil, err
	}
	s := &server{
		cfg:       cfg,
		logger:    logger.Named("http"),
		ledger:    ledger,
		instances: NewRegistry(logger.Named("drbg")),
		sink:      sink,
	}
	entropyLogger := logger.Named("entropy")
	s.sources = func(mode string) (entropy.Source, error) {
		return entropy.FromMode(mode, cfg.EntropyURLs, entropyLogger)
	}

	src, err := s.sources(cfg.EntropyMode)
	if err != nil {
		return nil, err
	}
	in, err := s.instances.Create(cfg.DRBG, src)
	if err != nil {
		return nil, fmt.Errorf("default instance: %w", err)
	}
	s.defaultID = in.ID
	return s, nil
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/instances", s.instancesHandler)
	mux.HandleFunc("/instances/", s.instanceRouter)
	mux.HandleFunc("/generate", s.generateHandler)
	mux.HandleFunc("/tx/", s.txRouter)
	mux.HandleFunc("/txs", s.txsHandler)
	mux.HandleFunc("/chain", s.chainHandler)
	mux.HandleFunc("/stats/upload", s.uploadStatsHandler)
	mux.HandleFunc("/selftest", s.selfTestHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	return mux
}

// ======= helpers =======

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func atoi(q string, def int) int {
	if q == "" {
		return def
	}
	v, err := strconv.Atoi(q)
	if err != nil {
		return def
	}
	return v
}

func hexParam(q url.Values, key string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return nil, badRequest("%s: %v", key, err)
	}
	return b, nil
}

func boolParam(q url.Values, key string) bool {
	v, err := strconv.ParseBool(q.Get(key))
	return err == nil && v
}

func statusFor(err error) int {
	var (
		reqErr *requestError
		cfgErr *drbg.ConfigurationError
		capErr *drbg.CapabilityError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &cfgErr), errors.As(err, &capErr),
		errors.Is(err, drbg.ErrRequestTooLarge), errors.Is(err, drbg.ErrEntropyTooShort),
		errors.Is(err, entropy.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, drbg.ErrReseedRequired), errors.Is(err, drbg.ErrUninstantiated),
		errors.Is(err, errNotReplayable):
		return http.StatusConflict
	case errors.Is(err, entropy.ErrNoBeacon), errors.Is(err, entropy.ErrHealthTest):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", code, "error", err)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

// writeBytes sends data as hex text, raw bytes or a 0/1 bit string
// (MSB first).
func writeBytes(w http.ResponseWriter, name string, data []byte, format string) {
	switch format {
	case "raw":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.bin\"", name))
		_, _ = w.Write(data)
	case "bin":
		out := make([]byte, 0, 8*len(data))
		for _, bit := range nist.UnpackMSB(data) {
			out = append(out, '0'+bit)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.txt\"", name))
		_, _ = w.Write(out)
	default:
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(hex.EncodeToString(data)))
	}
}

func outputFormat(q url.Values) (string, error) {
	f := strings.ToLower(q.Get("format"))
	switch f {
	case "":
		return "hex", nil
	case "hex", "raw", "bin":
		return f, nil
	}
	return "", badRequest("format %q: want hex, raw or bin", f)
}

// ======= instances =======

// POST /instances?config=...&entropy=...&personalization=<hex>&reseed_interval=N
// GET  /instances
func (s *server) instancesHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		list := s.instances.List()
		out := make([]instanceView, 0, len(list))
		for _, in := range list {
			out = append(out, in.view())
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	q := r.URL.Query()
	cfgString := q.Get("config")
	if cfgString == "" {
		cfgString = s.cfg.DRBGString
	}
	p, err := drbg.ParseConfig(cfgString)
	if err != nil {
		s.fail(w, err)
		return
	}
	p.ReseedInterval = s.cfg.ReseedInterval
	if v := q.Get("reseed_interval"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.fail(w, badRequest("reseed_interval: %v", err))
			return
		}
		p.ReseedInterval = n
	}
	if p.Personalization, err = hexParam(q, "personalization"); err != nil {
		s.fail(w, err)
		return
	}

	mode := q.Get("entropy")
	if mode == "" {
		mode = s.cfg.EntropyMode
	}
	src, err := s.sources(mode)
	if err != nil {
		s.fail(w, badRequest("entropy: %v", err))
		return
	}

	in, err := s.instances.Create(p, src)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in.view())
}

// /instances/{id}  /instances/{id}/reseed
func (s *server) instanceRouter(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/instances/")
	id, action, _ := strings.Cut(p, "/")
	if id == "" {
		http.Error(w, "missing instance id", http.StatusBadRequest)
		return
	}
	in, err := s.instances.Get(id)
	if err != nil {
		s.fail(w, fmt.Errorf("instance %s: %w", id, err))
		return
	}

	switch action {
	case "":
		if !allow(w, r, http.MethodGet, http.MethodDelete) {
			return
		}
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, in.view())
			return
		}
		if id == s.defaultID {
			http.Error(w, "the default instance cannot be removed", http.StatusConflict)
			return
		}
		if err := s.instances.Remove(id); err != nil {
			s.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "reseed":
		if !allow(w, r, http.MethodPost) {
			return
		}
		additional, err := hexParam(r.URL.Query(), "additional")
		if err != nil {
			s.fail(w, err)
			return
		}
		if err := in.DRBG.Reseed(additional); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, in.view())
	default:
		http.Error(w, "unknown instance action", http.StatusNotFound)
	}
}

// ======= generate =======

type generateResponse struct {
	TxID          string    `json:"tx_id"`
	CreatedAt     time.Time `json:"created_at"`
	Instance      string    `json:"instance,omitempty"`
	Profile       string    `json:"profile"`
	Count         int       `json:"count"`
	ReseedCounter uint64    `json:"reseed_counter"`
	Output        string    `json:"output"`
	OutputHash    string    `json:"output_hash"`
	Published     string    `json:"published"`
}

// GET /generate?instance=<id>&n=<bytes>&format=hex|raw|bin&additional=<hex>&pr=1
// GET /generate?entropy=repro&entropy_hex=..&nonce_hex=..&personalization=..&config=..
func (s *server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	q := r.URL.Query()

	n := atoi(q.Get("n"), 32)
	if n <= 0 || n > s.cfg.MaxRequest {
		s.fail(w, badRequest("n=%d: want 1..%d bytes", n, s.cfg.MaxRequest))
		return
	}
	format, err := outputFormat(q)
	if err != nil {
		s.fail(w, err)
		return
	}
	additional, err := hexParam(q, "additional")
	if err != nil {
		s.fail(w, err)
		return
	}
	pr := boolParam(q, "pr")

	tx := &Transaction{
		TxID:      uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Count:     n,
		Provenance: Provenance{
			AdditionalHex:        hex.EncodeToString(additional),
			PredictionResistance: pr,
		},
	}

	var d *drbg.DRBG
	switch mode := strings.ToLower(q.Get("entropy")); mode {
	case "":
		id := q.Get("instance")
		if id == "" {
			id = s.defaultID
		}
		in, err := s.instances.Get(id)
		if err != nil {
			s.fail(w, fmt.Errorf("instance %s: %w", id, err))
			return
		}
		d = in.DRBG
		tx.Instance = in.ID
		tx.Provenance.Entropy = in.Entropy
		tx.Provenance.Config = d.Profile().String()
	case reproMode:
		m, err := s.reproFromQuery(q)
		if err != nil {
			s.fail(w, err)
			return
		}
		if d, err = newReproDRBG(m); err != nil {
			s.fail(w, err)
			return
		}
		defer d.Uninstantiate()
		tx.Provenance.Entropy = reproMode
		tx.Provenance.Config = m.config
		tx.Provenance.EntropyHex = hex.EncodeToString(m.entropy)
		tx.Provenance.NonceHex = hex.EncodeToString(m.nonce)
		tx.Provenance.PersonalizationHex = hex.EncodeToString(m.personalization)
	default:
		s.fail(w, badRequest("entropy=%s: only repro is accepted here, create an instance for other sources", mode))
		return
	}

	out := make([]byte, n)
	counter, err := generate(d, out, additional, pr)
	if err != nil {
		s.fail(w, err)
		return
	}
	tx.Profile = d.Profile().String()
	tx.Provenance.ReseedCounterAtOutput = counter
	tx.OutputHash = outputHash(out)
	tx.Published = publishedHash(tx.OutputHash, tx.Profile)

	if _, err := s.ledger.Record(tx); err != nil {
		// the output is still valid; only persistence failed
		s.logger.Error("failed to save store", "tx", tx.TxID, "error", err)
	}
	s.logger.Debug("generated", "tx", tx.TxID, "instance", tx.Instance, "bytes", n)

	if format != "hex" {
		w.Header().Set("X-Tx-Id", tx.TxID)
		writeBytes(w, tx.TxID, out, format)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		TxID:          tx.TxID,
		CreatedAt:     tx.CreatedAt,
		Instance:      tx.Instance,
		Profile:       tx.Profile,
		Count:         n,
		ReseedCounter: tx.Provenance.ReseedCounterAtOutput,
		Output:        hex.EncodeToString(out),
		OutputHash:    tx.OutputHash,
		Published:     tx.Published,
	})
}

func (s *server) reproFromQuery(q url.Values) (reproMaterial, error) {
	m := reproMaterial{config: q.Get("config")}
	if m.config == "" {
		m.config = s.cfg.DRBGString
	}
	var err error
	if m.entropy, err = hexParam(q, "entropy_hex"); err != nil {
		return m, err
	}
	if len(m.entropy) == 0 {
		return m, badRequest("entropy=repro needs entropy_hex")
	}
	if m.nonce, err = hexParam(q, "nonce_hex"); err != nil {
		return m, err
	}
	if m.personalization, err = hexParam(q, "personalization"); err != nil {
		return m, err
	}
	return m, nil
}

// ======= transactions =======

func (s *server) chainHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Chain())
}

func (s *server) txsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Transactions())
}

// /tx/{id}/info  /verify  /reproduce  /stats
func (s *server) txRouter(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/tx/")
	id, action, _ := strings.Cut(p, "/")
	if id == "" {
		http.Error(w, "missing tx id", http.StatusBadRequest)
		return
	}
	if !allow(w, r, http.MethodGet) {
		return
	}
	tx, ok := s.ledger.Get(id)
	if !ok {
		http.Error(w, "tx not found", http.StatusNotFound)
		return
	}

	switch action {
	case "info":
		s.txInfo(w, tx)
	case "verify":
		s.txVerify(w, tx)
	case "reproduce":
		s.txReproduce(w, r, tx)
	case "stats":
		s.txStats(w, tx)
	default:
		s.logger.Debug("unknown tx action", "action", action, "tx", id)
		http.Error(w, "unknown tx action", http.StatusNotFound)
	}
}

func (s *server) txInfo(w http.ResponseWriter, tx *Transaction) {
	out := map[string]any{"tx": tx}
	if tx.Replayable() {
		pv := tx.Provenance
		q := url.Values{}
		q.Set("entropy", reproMode)
		q.Set("config", pv.Config)
		q.Set("entropy_hex", pv.EntropyHex)
		q.Set("nonce_hex", pv.NonceHex)
		q.Set("n", strconv.Itoa(tx.Count))
		if pv.PersonalizationHex != "" {
			q.Set("personalization", pv.PersonalizationHex)
		}
		if pv.AdditionalHex != "" {
			q.Set("additional", pv.AdditionalHex)
		}
		out["replay_url"] = "/generate?" + q.Encode()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) txVerify(w http.ResponseWriter, tx *Transaction) {
	resp := map[string]any{
		"chain_valid":        s.ledger.Validate(),
		"tx_found":           true,
		"published_match":    publishedHash(tx.OutputHash, tx.Profile) == tx.Published,
		"published_in_chain": s.ledger.PublishedInChain(tx.TxID),
		"replayable":         tx.Replayable(),
	}
	if tx.Replayable() {
		out, err := replay(tx)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp["output_hash_match"] = outputHash(out) == tx.OutputHash
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) txReproduce(w http.ResponseWriter, r *http.Request, tx *Transaction) {
	format, err := outputFormat(r.URL.Query())
	if err != nil {
		s.fail(w, err)
		return
	}
	out, err := replay(tx)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeBytes(w, tx.TxID+".reproduce", out, format)
}

// ======= service =======

func (s *server) selfTestHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if err := drbg.SelfTest(); err != nil {
		s.logger.Error("self test failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"passed": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passed": true})
}

func (s *server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	data, err := s.sink.DisplayMetrics(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
