/*
Package memory provides in-memory implementations of the repository
interfaces.

It backs the service tests and the STORE_DRIVER=memory development mode.
Writes are serialized with transactional units. A unit records an undo
step for each of its own writes and replays them in reverse when it
fails, so rows written by other callers survive a rollback.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coordy/internal/models"
	"coordy/internal/repositories"

	"github.com/google/uuid"
)

type txRecord struct {
	tx  models.PointTransaction
	seq int64
}

type state struct {
	wallets map[string]models.ClientWallet // by client id
	txs     map[string]*txRecord
}

// undoLog holds the inverse of each write a unit made. Entries run with
// l.mu held.
type undoLog []func()

func (u *undoLog) add(f func()) {
	if u != nil {
		*u = append(*u, f)
	}
}

// Ledger is a thread-safe in-memory LedgerRepository.
type Ledger struct {
	// Now stamps created_at/updated_at. Defaults to time.Now.
	Now func() time.Time

	mu sync.RWMutex
	// txMu serializes writers: a whole unit, or a single write made
	// outside one.
	txMu sync.Mutex
	seq  int64
	st   state
}

func NewLedger() *Ledger {
	return &Ledger{
		Now: time.Now,
		st: state{
			wallets: make(map[string]models.ClientWallet),
			txs:     make(map[string]*txRecord),
		},
	}
}

var _ repositories.LedgerRepository = (*Ledger)(nil)

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *Ledger) GetWalletByClientID(ctx context.Context, clientID string) (*models.ClientWallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	w, ok := l.st.wallets[clientID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	return &w, nil
}

func (l *Ledger) CreateWallet(ctx context.Context, wallet *models.ClientWallet) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.createWallet(wallet, nil)
}

func (l *Ledger) createWallet(wallet *models.ClientWallet, undo *undoLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.st.wallets[wallet.ClientID]; ok {
		return repositories.ErrDuplicateWallet
	}
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	now := l.now()
	wallet.Balance = 0
	wallet.Version = 0
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	l.st.wallets[wallet.ClientID] = *wallet

	clientID := wallet.ClientID
	undo.add(func() { delete(l.st.wallets, clientID) })
	return nil
}

func (l *Ledger) UpdateWalletBalance(ctx context.Context, wallet *models.ClientWallet, balance int64) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.updateWalletBalance(wallet, balance, nil)
}

func (l *Ledger) updateWalletBalance(wallet *models.ClientWallet, balance int64, undo *undoLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.st.wallets[wallet.ClientID]
	if !ok || stored.ID != wallet.ID {
		return repositories.ErrConcurrentModification
	}
	if stored.Version != wallet.Version {
		return repositories.ErrConcurrentModification
	}
	prev := stored
	stored.Balance = balance
	stored.Version++
	stored.UpdatedAt = l.now()
	l.st.wallets[wallet.ClientID] = stored
	*wallet = stored

	undo.add(func() { l.st.wallets[prev.ClientID] = prev })
	return nil
}

func (l *Ledger) ListWallets(ctx context.Context, limit, offset int) ([]models.ClientWallet, int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]models.ClientWallet, 0, len(l.st.wallets))
	for _, w := range l.st.wallets {
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return page(all, limit, offset), int64(len(all)), nil
}

func (l *Ledger) CreateTransaction(ctx context.Context, tx *models.PointTransaction) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.createTransaction(tx, nil)
}

func (l *Ledger) createTransaction(tx *models.PointTransaction, undo *undoLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = models.TransactionStatusPending
	}
	now := l.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	l.seq++
	tx.Seq = l.seq
	l.st.txs[tx.ID] = &txRecord{tx: copyTx(*tx), seq: l.seq}

	id := tx.ID
	undo.add(func() { delete(l.st.txs, id) })
	return nil
}

func (l *Ledger) GetTransactionByID(ctx context.Context, id string) (*models.PointTransaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.st.txs[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	tx := copyTx(rec.tx)
	return &tx, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]models.PointTransaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	recs := l.matching(filter)
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.tx.CreatedAt.Equal(b.tx.CreatedAt) {
			if filter.Order == repositories.SortOldestFirst {
				return a.tx.CreatedAt.Before(b.tx.CreatedAt)
			}
			return a.tx.CreatedAt.After(b.tx.CreatedAt)
		}
		if filter.Order == repositories.SortOldestFirst {
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})

	out := make([]models.PointTransaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copyTx(rec.tx))
	}
	if filter.Limit > 0 {
		out = page(out, filter.Limit, filter.Offset)
	}
	return out, nil
}

func (l *Ledger) CountTransactions(ctx context.Context, filter repositories.TransactionFilter) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.matching(filter))), nil
}

func (l *Ledger) TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update repositories.StatusUpdate) (*models.PointTransaction, error) {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.transitionStatus(id, from, to, update, nil)
}

func (l *Ledger) transitionStatus(id string, from, to models.TransactionStatus, update repositories.StatusUpdate, undo *undoLog) (*models.PointTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.st.txs[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	if rec.tx.Status != from {
		return nil, repositories.ErrStatusConflict
	}
	l.saveRow(rec, undo)
	rec.tx.Status = to
	if update.Description != "" {
		rec.tx.Description = update.Description
	}
	if update.ReviewedBy != "" {
		rec.tx.ReviewedBy = update.ReviewedBy
	}
	if update.ReviewedAt != nil {
		at := *update.ReviewedAt
		rec.tx.ReviewedAt = &at
	}
	rec.tx.UpdatedAt = l.now()
	tx := copyTx(rec.tx)
	return &tx, nil
}

func (l *Ledger) MarkExpired(ctx context.Context, id string, at time.Time) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.markExpired(id, at, nil)
}

func (l *Ledger) markExpired(id string, at time.Time, undo *undoLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.st.txs[id]
	if !ok {
		return repositories.ErrTransactionNotFound
	}
	if rec.tx.ExpiredAt != nil {
		return repositories.ErrStatusConflict
	}
	l.saveRow(rec, undo)
	rec.tx.ExpiredAt = &at
	rec.tx.UpdatedAt = l.now()
	return nil
}

// saveRow records the current contents of rec so a failed unit can put
// them back.
func (l *Ledger) saveRow(rec *txRecord, undo *undoLog) {
	prev := copyTx(rec.tx)
	undo.add(func() { rec.tx = prev })
}

func (l *Ledger) ClientsWithExpirableCharges(ctx context.Context, before time.Time, limit int) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, rec := range l.st.txs {
		if rec.tx.IsExpirable(before) {
			seen[rec.tx.ClientID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (l *Ledger) ExecuteInTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	var undo undoLog
	if err := fn(txView{Ledger: l, undo: &undo}); err != nil {
		l.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		l.mu.Unlock()
		return err
	}
	return nil
}

// txView is the repository handed to a transactional unit. Its writes
// skip txMu, which the unit already holds, and log their undo steps.
// Nested units run inline.
type txView struct {
	*Ledger
	undo *undoLog
}

func (v txView) CreateWallet(ctx context.Context, wallet *models.ClientWallet) error {
	return v.createWallet(wallet, v.undo)
}

func (v txView) UpdateWalletBalance(ctx context.Context, wallet *models.ClientWallet, balance int64) error {
	return v.updateWalletBalance(wallet, balance, v.undo)
}

func (v txView) CreateTransaction(ctx context.Context, tx *models.PointTransaction) error {
	return v.createTransaction(tx, v.undo)
}

func (v txView) TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update repositories.StatusUpdate) (*models.PointTransaction, error) {
	return v.transitionStatus(id, from, to, update, v.undo)
}

func (v txView) MarkExpired(ctx context.Context, id string, at time.Time) error {
	return v.markExpired(id, at, v.undo)
}

func (v txView) ExecuteInTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	return fn(v)
}

func (l *Ledger) matching(f repositories.TransactionFilter) []*txRecord {
	var out []*txRecord
	for _, rec := range l.st.txs {
		tx := rec.tx
		if f.ClientID != "" && tx.ClientID != f.ClientID {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.Method != "" && tx.Method != f.Method {
			continue
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		if f.SourceTransactionID != "" && (tx.SourceTransactionID == nil || *tx.SourceTransactionID != f.SourceTransactionID) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func copyTx(tx models.PointTransaction) models.PointTransaction {
	if tx.ExpiresAt != nil {
		v := *tx.ExpiresAt
		tx.ExpiresAt = &v
	}
	if tx.ExpiredAt != nil {
		v := *tx.ExpiredAt
		tx.ExpiredAt = &v
	}
	if tx.ReviewedAt != nil {
		v := *tx.ReviewedAt
		tx.ReviewedAt = &v
	}
	if tx.SourceTransactionID != nil {
		v := *tx.SourceTransactionID
		tx.SourceTransactionID = &v
	}
	tx.Metadata = models.NewJSON(tx.Metadata)
	return tx
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
