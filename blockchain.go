package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/hashicorp/go-hclog"
)

// Ledger keeps every transaction and a hash chain that publishes them. It
// is persisted as one JSON file, replaced atomically on each append.
type Ledger struct {
	path   string
	logger log.Logger
	saveMu sync.Mutex

	mu    sync.RWMutex
	txs   map[string]*Transaction
	chain []Block
}

type persistedStore struct {
	TxStore map[string]*Transaction `json:"tx_store"`
	Chain   []Block                 `json:"chain"`
}

// OpenLedger loads the ledger at path. A missing file yields an empty
// ledger; an unparsable one is moved aside and replaced by an empty
// ledger.
func OpenLedger(path string, logger log.Logger) (*Ledger, error) {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	l := &Ledger{
		path:   path,
		logger: logger,
		txs:    map[string]*Transaction{},
		chain:  []Block{},
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no persisted store, starting empty", "path", path)
		return l, l.save()
	case err != nil:
		return nil, fmt.Errorf("reading store: %w", err)
	}

	var p persistedStore
	if err := json.Unmarshal(b, &p); err != nil {
		bad := path + ".corrupt-" + time.Now().Format("20060102-150405")
		if err2 := os.Rename(path, bad); err2 != nil {
			return nil, fmt.Errorf("store %s is invalid (%v) and could not be moved: %w", path, err, err2)
		}
		logger.Warn("moved invalid store aside", "path", bad, "error", err)
		return l, l.save()
	}
	if p.TxStore != nil {
		l.txs = p.TxStore
	}
	if p.Chain != nil {
		l.chain = p.Chain
	}
	logger.Info("loaded store", "path", path, "transactions", len(l.txs), "blocks", len(l.chain))
	return l, nil
}

// Record stores tx and appends a block publishing it.
func (l *Ledger) Record(tx *Transaction) (Block, error) {
	l.mu.Lock()
	prev := ""
	if len(l.chain) > 0 {
		prev = l.chain[len(l.chain)-1].Hash
	}
	blk := Block{
		Index:     len(l.chain),
		Timestamp: time.Now().Unix(),
		TxID:      tx.TxID,
		DataHash:  tx.Published,
		PrevHash:  prev,
	}
	blk.Hash = computeBlockHash(blk)
	l.txs[tx.TxID] = tx
	l.chain = append(l.chain, blk)
	l.mu.Unlock()

	if err := l.save(); err != nil {
		return blk, err
	}
	l.logger.Debug("appended block", "index", blk.Index, "tx", tx.TxID)
	return blk, nil
}

func (l *Ledger) Get(id string) (*Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.txs[id]
	return tx, ok
}

// Transactions returns all transactions, oldest first.
func (l *Ledger) Transactions() []*Transaction {
	l.mu.RLock()
	list := make([]*Transaction, 0, len(l.txs))
	for _, tx := range l.txs {
		list = append(list, tx)
	}
	l.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].TxID < list[j].TxID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (l *Ledger) Chain() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// Validate checks every block hash and link.
func (l *Ledger) Validate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := range l.chain {
		if computeBlockHash(l.chain[i]) != l.chain[i].Hash {
			return false
		}
		if i > 0 && l.chain[i].PrevHash != l.chain[i-1].Hash {
			return false
		}
	}
	return true
}

// PublishedInChain reports whether a block carries the published hash of
// transaction id.
func (l *Ledger) PublishedInChain(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.txs[id]
	if !ok {
		return false
	}
	for i := range l.chain {
		if l.chain[i].TxID == id {
			return l.chain[i].DataHash == tx.Published
		}
	}
	return false
}

func computeBlockHash(b Block) string {
	s := fmt.Sprintf("%d:%d:%s:%s:%s", b.Index, b.Timestamp, b.TxID, b.DataHash, b.PrevHash)
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func (l *Ledger) save() error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.RLock()
	data, err := json.MarshalIndent(persistedStore{TxStore: l.txs, Chain: l.chain}, "", "  ")
	l.mu.RUnlock()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return err
	}
	return nil
}
