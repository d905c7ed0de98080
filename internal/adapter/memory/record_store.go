// Package memory provides a process-local record store. It backs tests and
// single-process deployments where state need not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

// RecordStore implements port.RecordStore with maps guarded by one mutex,
// so every call is a single atomic step.
type RecordStore struct {
	mu         sync.RWMutex
	state      *domain.ContractState
	creatives  table[domain.Creative]
	adSpots    table[domain.AdSpot]
	agreements table[domain.Agreement]
	transfers  map[string]domain.Transfer
}

// NewRecordStore returns an empty, uninitialized store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		creatives:  newTable[domain.Creative](domain.KindCreative, domain.ErrCreativeNotFound),
		adSpots:    newTable[domain.AdSpot](domain.KindAdSpot, domain.ErrAdSpotNotFound),
		agreements: newTable[domain.Agreement](domain.KindAgreement, domain.ErrAgreementNotFound),
		transfers:  make(map[string]domain.Transfer),
	}
}

// Initialize stores state unless the store is already initialized.
func (s *RecordStore) Initialize(_ context.Context, state domain.ContractState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		return domain.ErrAlreadyInitialized
	}
	s.state = &state
	return nil
}

func (s *RecordStore) ContractState(_ context.Context) (domain.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return domain.ContractState{}, domain.ErrContractNotFound
	}
	return *s.state, nil
}

// InsertCreative stores a copy of c. A zero id takes the next counter value.
func (s *RecordStore) InsertCreative(_ context.Context, c domain.Creative) (domain.Creative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c = c.Clone()
	id, err := s.creatives.insert(c.ID, func(id int64) domain.Creative {
		c.ID = id
		return c
	})
	if err != nil {
		return domain.Creative{}, err
	}
	return s.creatives.rows[id].Clone(), nil
}

func (s *RecordStore) GetCreative(_ context.Context, id int64) (domain.Creative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.creatives.get(id)
	return c.Clone(), err
}

// ListCreatives returns copies of all creatives keyed by id.
func (s *RecordStore) ListCreatives(_ context.Context) (map[int64]domain.Creative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creatives.list(domain.Creative.Clone), nil
}

// InsertAdSpot follows the id rules of InsertCreative.
func (s *RecordStore) InsertAdSpot(_ context.Context, sp domain.AdSpot) (domain.AdSpot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp = sp.Clone()
	id, err := s.adSpots.insert(sp.ID, func(id int64) domain.AdSpot {
		sp.ID = id
		return sp
	})
	if err != nil {
		return domain.AdSpot{}, err
	}
	return s.adSpots.rows[id].Clone(), nil
}

func (s *RecordStore) GetAdSpot(_ context.Context, id int64) (domain.AdSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, err := s.adSpots.get(id)
	return sp.Clone(), err
}

func (s *RecordStore) ListAdSpots(_ context.Context) (map[int64]domain.AdSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adSpots.list(domain.AdSpot.Clone), nil
}

// InsertAgreement follows the id rules of InsertCreative.
func (s *RecordStore) InsertAgreement(_ context.Context, a domain.Agreement) (domain.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a = a.Clone()
	id, err := s.agreements.insert(a.ID, func(id int64) domain.Agreement {
		a.ID = id
		return a
	})
	if err != nil {
		return domain.Agreement{}, err
	}
	return s.agreements.rows[id].Clone(), nil
}

func (s *RecordStore) GetAgreement(_ context.Context, id int64) (domain.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, err := s.agreements.get(id)
	return a.Clone(), err
}

func (s *RecordStore) ListAgreements(_ context.Context) (map[int64]domain.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agreements.list(domain.Agreement.Clone), nil
}

// DueAgreements scans every agreement. The SQL stores use an index.
func (s *RecordStore) DueAgreements(_ context.Context, now int64, limit int) ([]domain.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Agreement
	for _, a := range s.agreements.rows {
		if !a.Settled && a.EndTime <= now {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime != out[j].EndTime {
			return out[i].EndTime < out[j].EndTime
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CommitSettlement replaces the agreement and adds its transfer only while
// the stored agreement is unsettled and the transfer key is unused.
func (s *RecordStore) CommitSettlement(_ context.Context, settled domain.Agreement, t domain.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.agreements.get(settled.ID)
	if err != nil {
		return err
	}
	if current.Settled {
		return errs.Wrapf(domain.ErrAlreadySettled, "agreement %d", settled.ID)
	}
	if _, ok := s.transfers[t.Key]; ok {
		return errs.Wrapf(domain.ErrAlreadySettled, "transfer %s exists", t.Key)
	}
	s.agreements.rows[settled.ID] = settled.Clone()
	s.transfers[t.Key] = t.Clone()
	return nil
}

// PendingTransfers sorts by creation time, then agreement id.
func (s *RecordStore) PendingTransfers(_ context.Context, limit int) ([]domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transfer
	for _, t := range s.transfers {
		if t.Status == domain.TransferPending {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].AgreementID < out[j].AgreementID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *RecordStore) GetTransfer(_ context.Context, key string) (domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[key]
	if !ok {
		return domain.Transfer{}, errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	return t.Clone(), nil
}

// MarkTransferSent records delivery at unix second at.
func (s *RecordStore) MarkTransferSent(_ context.Context, key string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[key]
	if !ok {
		return errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	t.Status = domain.TransferSent
	t.SentAt = &at
	s.transfers[key] = t
	return nil
}

// RecordTransferAttempt counts one failed delivery of key.
func (s *RecordStore) RecordTransferAttempt(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[key]
	if !ok {
		return errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	t.Attempts++
	s.transfers[key] = t
	return nil
}

// Close is a no-op.
func (s *RecordStore) Close() error { return nil }

// table is one id-keyed namespace with its auto-increment counter. Callers
// hold the store mutex.
type table[T any] struct {
	kind     domain.Kind
	notFound error
	rows     map[int64]T
	counter  int64
}

func newTable[T any](kind domain.Kind, notFound error) table[T] {
	return table[T]{kind: kind, notFound: notFound, rows: make(map[int64]T)}
}

// insert stores build(id) under id, or under the next counter value when id
// is zero. The counter only moves on success.
func (t *table[T]) insert(id int64, build func(id int64) T) (int64, error) {
	if id == 0 {
		id = t.counter + 1
	}
	if _, ok := t.rows[id]; ok {
		return 0, errs.Wrapf(domain.ErrConflict, "%s %d", t.kind, id)
	}
	t.rows[id] = build(id)
	if id > t.counter {
		t.counter = id
	}
	return id, nil
}

func (t *table[T]) get(id int64) (T, error) {
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, errs.Wrapf(t.notFound, "id %d", id)
	}
	return v, nil
}

func (t *table[T]) list(clone func(T) T) map[int64]T {
	out := make(map[int64]T, len(t.rows))
	for id, v := range t.rows {
		out[id] = clone(v)
	}
	return out
}
