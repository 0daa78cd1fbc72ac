// Package memstore is an in-memory implementation of the repositories and
// transaction manager. Transactions are serialized and roll back on error.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

type data struct {
	subs     map[uuid.UUID]domain.Subscription
	records  map[uuid.UUID]domain.BillingRecord
	attempts map[string]domain.PaymentAttempt
	refunds  []domain.RefundRequest
	creds    map[string]domain.CredentialRecord
	audit    []domain.AuditLogEntry
	codes    map[uuid.UUID]domain.VerificationCode
	tokens   map[uuid.UUID]domain.AccessToken
}

func newData() data {
	return data{
		subs:     map[uuid.UUID]domain.Subscription{},
		records:  map[uuid.UUID]domain.BillingRecord{},
		attempts: map[string]domain.PaymentAttempt{},
		creds:    map[string]domain.CredentialRecord{},
		codes:    map[uuid.UUID]domain.VerificationCode{},
		tokens:   map[uuid.UUID]domain.AccessToken{},
	}
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.subs {
		c.subs[k] = v
	}
	for k, v := range d.records {
		c.records[k] = v
	}
	for k, v := range d.attempts {
		c.attempts[k] = v
	}
	c.refunds = append(c.refunds, d.refunds...)
	for k, v := range d.creds {
		c.creds[k] = v
	}
	c.audit = append(c.audit, d.audit...)
	for k, v := range d.codes {
		c.codes[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	return c
}

// Store holds every table in memory
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    data

	faults       map[string][]error
	transactions int
	readOnly     int
}

// New creates an empty store
func New() *Store {
	return &Store{d: newData(), faults: map[string][]error{}}
}

// FailNext makes the next call of op return err. Calls queue in order.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

func (s *Store) fault(op string) error {
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return queue[0]
}

// Transactions returns the number of transactions started
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions
}

// WithTransaction runs fn serialized against other transactions and restores the
// previous state when fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.transactions++
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// WithReadOnlyTransaction runs fn without snapshotting
func (s *Store) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.mu.Lock()
	s.readOnly++
	s.mu.Unlock()
	return fn(ctx, nil)
}

// ReadOnlyTransactions returns the number of read-only transactions started
func (s *Store) ReadOnlyTransactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// Subscriptions returns the subscription repository view
func (s *Store) Subscriptions() *SubscriptionRepo { return &SubscriptionRepo{s: s} }

// Ledger returns the ledger repository view
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Credentials returns the credential repository view
func (s *Store) Credentials() *CredentialRepo { return &CredentialRepo{s: s} }

// SubscriptionRepo implements ports.SubscriptionRepository
type SubscriptionRepo struct{ s *Store }

func (r *SubscriptionRepo) Create(_ context.Context, _ ports.DBTX, sub *domain.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Subscriptions.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.d.subs {
		if existing.AdminID == sub.AdminID {
			return domain.ErrDuplicateTransaction.WithDetail("constraint", "subscriptions_admin_id_key")
		}
	}
	r.s.d.subs[sub.ID] = *sub
	return nil
}

func (r *SubscriptionRepo) GetByID(_ context.Context, _ ports.DBTX, id uuid.UUID) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.d.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *SubscriptionRepo) GetByAdminID(_ context.Context, _ ports.DBTX, adminID string) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.d.subs {
		if sub.AdminID == adminID {
			return &sub, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (r *SubscriptionRepo) LockByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Subscription, error) {
	r.s.mu.Lock()
	err := r.s.fault("Subscriptions.Lock")
	r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tx, id)
}

func (r *SubscriptionRepo) LockByAdminID(ctx context.Context, tx ports.DBTX, adminID string) (*domain.Subscription, error) {
	r.s.mu.Lock()
	err := r.s.fault("Subscriptions.Lock")
	r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.GetByAdminID(ctx, tx, adminID)
}

func (r *SubscriptionRepo) Update(_ context.Context, _ ports.DBTX, sub *domain.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Subscriptions.Update"); err != nil {
		return err
	}
	if _, ok := r.s.d.subs[sub.ID]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	r.s.d.subs[sub.ID] = *sub
	return nil
}

func (r *SubscriptionRepo) ListOverdue(_ context.Context, _ ports.DBTX, now time.Time, limit int) ([]*domain.Subscription, error) {
	return r.list(limit, func(s *domain.Subscription) bool { return s.IsOverdue(now) }), nil
}

func (r *SubscriptionRepo) ListByStatus(_ context.Context, _ ports.DBTX, status domain.SubscriptionStatus, limit int) ([]*domain.Subscription, error) {
	return r.list(limit, func(s *domain.Subscription) bool { return s.Status == status }), nil
}

func (r *SubscriptionRepo) ListEndingBetween(_ context.Context, _ ports.DBTX, from, to time.Time) ([]*domain.Subscription, error) {
	within := func(t *time.Time) bool { return t != nil && !t.Before(from) && !t.After(to) }
	return r.list(0, func(s *domain.Subscription) bool {
		switch s.Status {
		case domain.SubscriptionStatusTrial:
			return within(s.TrialEnd)
		case domain.SubscriptionStatusActive:
			return within(s.SubscriptionEnd)
		}
		return false
	}), nil
}

func (r *SubscriptionRepo) list(limit int, match func(*domain.Subscription) bool) []*domain.Subscription {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Subscription
	for _, sub := range r.s.d.subs {
		sub := sub
		if match(&sub) {
			out = append(out, &sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatusChangedAt.Before(out[j].StatusChangedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ ports.SubscriptionRepository = (*SubscriptionRepo)(nil)
var _ ports.DBPort = (*Store)(nil)
