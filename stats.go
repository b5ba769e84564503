package main

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"rng-drbg/internal/nist"
)

const maxUpload = 32 << 20

type txStatsResponse struct {
	TxID   string         `json:"tx_id"`
	Count  int            `json:"count"`
	Bits   int            `json:"n"`
	Rows   []nist.TestRow `json:"report"`
	Passed bool           `json:"passed"`
}

// txStats runs the SP 800-22 subset over the replayed output of tx, MSB
// first.
func (s *server) txStats(w http.ResponseWriter, tx *Transaction) {
	out, err := replay(tx)
	if err != nil {
		s.fail(w, err)
		return
	}
	rep := nist.RunAll(nist.UnpackMSB(out))
	writeJSON(w, http.StatusOK, txStatsResponse{
		TxID:   tx.TxID,
		Count:  tx.Count,
		Bits:   rep.Bits,
		Rows:   rep.Rows,
		Passed: rep.Passed,
	})
}

// POST /stats/upload?mode=txt|bin01|binpacked
// The body is a 0/1 string or binary data, or multipart with a file (or a
// "bits" field).
func (s *server) uploadStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	modeParam := r.URL.Query().Get("mode")

	var bits []byte
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		bits, err = bitsFromMultipart(r, modeParam)
	} else {
		var body []byte
		if body, err = io.ReadAll(r.Body); err == nil {
			bits, err = nist.Decode(body, nist.ParseMode(modeParam))
		}
	}
	if err != nil {
		http.Error(w, "failed to parse bits: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, nist.RunAll(bits))
}

func bitsFromMultipart(r *http.Request, modeParam string) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil && !errors.Is(err, multipart.ErrMessageTooLarge) {
		return nil, err
	}
	if modeParam == "" {
		modeParam = r.FormValue("mode")
	}

	var fh *multipart.FileHeader
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["file"]; len(files) > 0 {
			fh = files[0]
		} else {
			for _, arr := range r.MultipartForm.File {
				if len(arr) > 0 {
					fh = arr[0]
					break
				}
			}
		}
	}
	if fh == nil {
		if s := r.FormValue("bits"); s != "" {
			return nist.ParseBitString(s)
		}
		return nil, errors.New("no file provided")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, f); err != nil {
		return nil, err
	}

	mode := nist.ParseMode(modeParam)
	if mode == nist.ModeUnknown && strings.EqualFold(filepath.Ext(fh.Filename), ".txt") {
		mode = nist.ModeText
	}
	return nist.Decode(buf.Bytes(), mode)
}
