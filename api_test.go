package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	metrics "github.com/armon/go-metrics"
	log "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rng-drbg/internal/config"
	"rng-drbg/internal/drbg"
)

const (
	testEntropy = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testNonce   = "202122232425262728292a2b2c2d2e2f"
)

func newTestServer(t *testing.T, env map[string]string) *server {
	t.Helper()
	vals := map[string]string{"RNG_STORE": filepath.Join(t.TempDir(), "store.json")}
	for k, v := range env {
		vals[k] = v
	}
	cfg, err := config.FromEnv(func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	})
	require.NoError(t, err)

	s, err := newServer(cfg, log.NewNullLogger(), metrics.NewInmemSink(10*time.Second, time.Minute))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGenerateFromDefaultInstance(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.handler()

	rec := do(t, h, http.MethodGet, "/generate?n=48", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decode[generateResponse](t, rec)

	out, err := hex.DecodeString(gen.Output)
	require.NoError(t, err)
	assert.Len(t, out, 48)
	assert.Equal(t, s.defaultID, gen.Instance)
	assert.Equal(t, "Hash_DRBG,SHA-256,256,reseed_only", gen.Profile)
	assert.Equal(t, outputHash(out), gen.OutputHash)
	assert.EqualValues(t, 2, gen.ReseedCounter)

	txs := decode[[]Transaction](t, do(t, h, http.MethodGet, "/txs", nil))
	require.Len(t, txs, 1)
	assert.Equal(t, gen.TxID, txs[0].TxID)
	assert.Equal(t, "mode:os", txs[0].Provenance.Entropy)
	assert.Len(t, decode[[]Block](t, do(t, h, http.MethodGet, "/chain", nil)), 1)

	verify := decode[map[string]any](t, do(t, h, http.MethodGet, "/tx/"+gen.TxID+"/verify", nil))
	assert.Equal(t, true, verify["chain_valid"])
	assert.Equal(t, true, verify["published_in_chain"])
	assert.Equal(t, true, verify["published_match"])
	assert.Equal(t, false, verify["replayable"])
	assert.NotContains(t, verify, "output_hash_match")

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodGet, "/tx/"+gen.TxID+"/reproduce", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodGet, "/tx/"+gen.TxID+"/stats", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/tx/"+gen.TxID+"/png", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/tx/missing/info", nil).Code)
}

func TestGenerateFormats(t *testing.T) {
	h := newTestServer(t, nil).handler()

	rec := do(t, h, http.MethodGet, "/generate?n=5&format=raw", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Body.Bytes(), 5)
	assert.NotEmpty(t, rec.Header().Get("X-Tx-Id"))

	rec = do(t, h, http.MethodGet, "/generate?n=3&format=bin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.String(), 24)
	assert.Empty(t, strings.Trim(rec.Body.String(), "01"))
}

func TestReproReplays(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.handler()
	const n = drbg.MaxBytesPerRequest + 4464

	target := "/generate?entropy=repro&format=raw&additional=abcd&n=70000" +
		"&entropy_hex=" + testEntropy + "&nonce_hex=" + testNonce
	rec := do(t, h, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := rec.Body.Bytes()
	require.Len(t, got, n)
	id := rec.Header().Get("X-Tx-Id")

	// the same material through the library gives the same bytes
	p, err := drbg.ParseConfig(config.DefaultDRBG)
	require.NoError(t, err)
	d, err := drbg.New(p)
	require.NoError(t, err)
	entropy, _ := hex.DecodeString(testEntropy)
	nonce, _ := hex.DecodeString(testNonce)
	require.NoError(t, d.InstantiateWithEntropy(entropy, nonce, nil))
	want := make([]byte, n)
	require.NoError(t, d.Generate(want[:drbg.MaxBytesPerRequest], []byte{0xab, 0xcd}, false))
	require.NoError(t, d.Generate(want[drbg.MaxBytesPerRequest:], nil, false))
	assert.Equal(t, want, got)

	rec = do(t, h, http.MethodGet, "/tx/"+id+"/reproduce?format=raw", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, got, rec.Body.Bytes())

	verify := decode[map[string]any](t, do(t, h, http.MethodGet, "/tx/"+id+"/verify", nil))
	assert.Equal(t, true, verify["output_hash_match"])
	assert.Equal(t, true, verify["chain_valid"])

	info := decode[map[string]any](t, do(t, h, http.MethodGet, "/tx/"+id+"/info", nil))
	replayURL, _ := info["replay_url"].(string)
	assert.Contains(t, replayURL, "entropy_hex="+testEntropy)
	assert.Contains(t, replayURL, "additional=abcd")

	rec = do(t, h, http.MethodGet, "/tx/"+id+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[txStatsResponse](t, rec)
	assert.Equal(t, 8*n, stats.Bits)
	assert.Len(t, stats.Rows, 7)

	// a stored transaction whose output changed no longer verifies
	tx, ok := s.ledger.Get(id)
	require.True(t, ok)
	assert.EqualValues(t, 3, tx.Provenance.ReseedCounterAtOutput, "counter after the last chunk")
	tx.OutputHash = outputHash([]byte("tampered"))
	verify = decode[map[string]any](t, do(t, h, http.MethodGet, "/tx/"+id+"/verify", nil))
	assert.Equal(t, false, verify["output_hash_match"])
	assert.Equal(t, false, verify["published_match"])
}

func TestConcurrentGenerateRecordsOwnCounter(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.handler()

	const requests = 16
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := do(t, h, http.MethodGet, "/generate?n=32", nil)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, tx := range s.ledger.Transactions() {
		seen[tx.Provenance.ReseedCounterAtOutput] = true
	}
	assert.Len(t, seen, requests)
	for n := uint64(2); n <= requests+1; n++ {
		assert.True(t, seen[n], "counter %d", n)
	}
}

func TestGenerateErrors(t *testing.T) {
	h := newTestServer(t, nil).handler()
	repro := "/generate?entropy=repro&nonce_hex=" + testNonce

	cases := []struct {
		name   string
		target string
		code   int
	}{
		{"zero length", "/generate?n=0", http.StatusBadRequest},
		{"above max request", "/generate?n=2000000", http.StatusBadRequest},
		{"bad format", "/generate?format=png", http.StatusBadRequest},
		{"bad additional input", "/generate?additional=zz", http.StatusBadRequest},
		{"unknown instance", "/generate?instance=nope", http.StatusNotFound},
		{"entropy other than repro", "/generate?entropy=jitter", http.StatusBadRequest},
		{"prediction resistance not permitted", "/generate?pr=1", http.StatusBadRequest},
		{"repro without entropy", repro, http.StatusBadRequest},
		{"repro with short entropy", repro + "&entropy_hex=00", http.StatusBadRequest},
		{"repro with CTR", repro + "&entropy_hex=" + testEntropy + "&config=CTR_DRBG", http.StatusBadRequest},
		{"repro cannot reseed", repro + "&entropy_hex=" + testEntropy + "&config=HMAC_DRBG,pr_and_reseed&pr=true", http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tc.target, nil)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/generate", nil).Code)
	assert.Empty(t, decode[[]Transaction](t, do(t, h, http.MethodGet, "/txs", nil)))
}

func TestInstanceLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.handler()

	rec := do(t, h, http.MethodPost, "/instances?config=HMAC_DRBG,SHA-512,256,pr_and_reseed&entropy=jitter&personalization=0102", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decode[instanceView](t, rec)
	assert.Equal(t, "HMAC_DRBG,SHA-512,256,pr_and_reseed", in.Profile)
	assert.Equal(t, "mode:jitter", in.Entropy)
	assert.True(t, in.Instantiated)
	assert.EqualValues(t, 1, in.ReseedCounter)

	assert.Len(t, decode[[]instanceView](t, do(t, h, http.MethodGet, "/instances", nil)), 2)

	rec = do(t, h, http.MethodGet, "/generate?n=16&pr=1&instance="+in.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode[generateResponse](t, rec).ReseedCounter)

	rec = do(t, h, http.MethodPost, "/instances/"+in.ID+"/reseed?additional=ff", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode[instanceView](t, rec).ReseedCounter)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/instances/"+in.ID+"/reseed", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/instances/"+in.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/instances/"+in.ID, nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodDelete, "/instances/"+s.defaultID, nil).Code)
}

func TestInstanceCapabilities(t *testing.T) {
	h := newTestServer(t, nil).handler()

	rec := do(t, h, http.MethodPost, "/instances?config=Hash_DRBG,SHA-256,128,none&reseed_interval=1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decode[instanceView](t, rec)
	assert.EqualValues(t, 1, in.ReseedInterval)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/instances/"+in.ID+"/reseed", nil).Code)

	// one generate fits the interval, the next needs a reseed the
	// capability does not allow
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/generate?instance="+in.ID, nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodGet, "/generate?instance="+in.ID, nil).Code)
}

func TestCreateInstanceErrors(t *testing.T) {
	h := newTestServer(t, nil).handler()

	for _, target := range []string{
		"/instances?config=CTR_DRBG",
		"/instances?config=Hash_DRBG,SHA-224,256",
		"/instances?config=Hash_DRBG,hash",
		"/instances?entropy=bogus",
		"/instances?entropy=http",
		"/instances?personalization=xyz",
		"/instances?reseed_interval=-1",
	} {
		rec := do(t, h, http.MethodPost, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s: %s", target, rec.Body.String())
	}
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/instances", nil).Code)
}

const epsilon100 = "1100100100001111110110101010001000100001011010001100001000110100110001001100011001100010100010111000"

func TestUploadStats(t *testing.T) {
	h := newTestServer(t, nil).handler()

	rec := do(t, h, http.MethodPost, "/stats/upload", strings.NewReader(epsilon100))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decode[map[string]any](t, rec)
	assert.EqualValues(t, 100, rep["n"])
	assert.Len(t, rep["report"], 7)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "bits.bin")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte{0xa5, 0x3c}, 64))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("mode", "binpacked"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/stats/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1024, decode[map[string]any](t, rec)["n"])

	buf.Reset()
	mw = multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("bits", "0101"))
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/stats/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode[map[string]any](t, rec)["passed"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/stats/upload", strings.NewReader("")).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/stats/upload?mode=bin01", strings.NewReader("\x00\x07")).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/stats/upload", nil).Code)
}

func TestSelfTestAndMetrics(t *testing.T) {
	h := newTestServer(t, nil).handler()

	rec := do(t, h, http.MethodGet, "/selftest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["passed"])

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, map[string]string{"RNG_CORS_ORIGINS": "https://app.example"}).handler()

	req := httptest.NewRequest(http.MethodGet, "/generate?n=4&format=raw", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Tx-Id", rec.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/generate?n=4", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{&drbg.CapabilityError{Capability: drbg.CapabilityNone, Requested: "reseed"}, http.StatusBadRequest},
		{drbg.ErrReseedRequired, http.StatusConflict},
		{errNotReplayable, http.StatusConflict},
		{errNotFound, http.StatusNotFound},
		{&drbg.InternalError{Op: "generate", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
		{drbg.ErrFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, statusFor(tc.err), tc.err.Error())
	}
}
