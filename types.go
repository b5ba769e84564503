package main

import (
	"time"
)

// Provenance records where the output of a transaction came from. For
// replayable transactions it holds the caller's seed material, which is
// enough to regenerate the output.
type Provenance struct {
	Entropy               string `json:"entropy"` // source tag, or "repro"
	Config                string `json:"config"`
	EntropyHex            string `json:"entropy_hex,omitempty"`
	NonceHex              string `json:"nonce_hex,omitempty"`
	PersonalizationHex    string `json:"personalization_hex,omitempty"`
	AdditionalHex         string `json:"additional_hex,omitempty"`
	PredictionResistance  bool   `json:"prediction_resistance,omitempty"`
	ReseedCounterAtOutput uint64 `json:"reseed_counter"`
}

const reproMode = "repro"

type Transaction struct {
	TxID       string     `json:"tx_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Instance   string     `json:"instance,omitempty"`
	Profile    string     `json:"profile"`
	Count      int        `json:"count"` // output length in bytes
	OutputHash string     `json:"output_hash"`
	Published  string     `json:"published"`
	Provenance Provenance `json:"provenance"`
}

// Replayable reports whether the output can be regenerated from the
// stored provenance.
func (tx *Transaction) Replayable() bool {
	return tx.Provenance.Entropy == reproMode
}

type Block struct {
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	TxID      string `json:"tx_id"`
	DataHash  string `json:"data_hash"` // published
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
}
