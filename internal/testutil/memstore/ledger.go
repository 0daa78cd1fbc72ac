package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// LedgerRepo implements ports.LedgerRepository
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) CreateBillingRecord(_ context.Context, _ ports.DBTX, rec *domain.BillingRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Ledger.CreateBillingRecord"); err != nil {
		return err
	}
	r.s.d.records[rec.ID] = *rec
	return nil
}

func (r *LedgerRepo) GetBillingRecord(_ context.Context, _ ports.DBTX, id uuid.UUID) (*domain.BillingRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.d.records[id]
	if !ok {
		return nil, domain.ErrBillingRecordNotFound
	}
	return &rec, nil
}

func (r *LedgerRepo) UpdateBillingRecord(_ context.Context, _ ports.DBTX, rec *domain.BillingRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Ledger.UpdateBillingRecord"); err != nil {
		return err
	}
	if _, ok := r.s.d.records[rec.ID]; !ok {
		return domain.ErrBillingRecordNotFound
	}
	r.s.d.records[rec.ID] = *rec
	return nil
}

func (r *LedgerRepo) ListBillingRecords(_ context.Context, _ ports.DBTX, subscriptionID uuid.UUID, limit int) ([]*domain.BillingRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.BillingRecord
	for _, rec := range r.s.d.records {
		rec := rec
		if rec.SubscriptionID == subscriptionID {
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LedgerRepo) CreateAttempt(_ context.Context, _ ports.DBTX, a *domain.PaymentAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Ledger.CreateAttempt"); err != nil {
		return err
	}
	if _, exists := r.s.d.attempts[a.TransactionRef]; exists {
		return domain.ErrDuplicateTransaction
	}
	r.s.d.attempts[a.TransactionRef] = *a
	return nil
}

func (r *LedgerRepo) GetAttemptByRef(_ context.Context, _ ports.DBTX, ref string) (*domain.PaymentAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.d.attempts[ref]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &a, nil
}

func (r *LedgerRepo) LockAttemptByRef(ctx context.Context, tx ports.DBTX, ref string) (*domain.PaymentAttempt, error) {
	r.s.mu.Lock()
	err := r.s.fault("Ledger.LockAttemptByRef")
	r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.GetAttemptByRef(ctx, tx, ref)
}

func (r *LedgerRepo) UpdateAttempt(_ context.Context, _ ports.DBTX, a *domain.PaymentAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Ledger.UpdateAttempt"); err != nil {
		return err
	}
	if _, ok := r.s.d.attempts[a.TransactionRef]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.s.d.attempts[a.TransactionRef] = *a
	return nil
}

func (r *LedgerRepo) ListAttempts(_ context.Context, _ ports.DBTX, subscriptionID uuid.UUID, limit int) ([]*domain.PaymentAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.PaymentAttempt
	for _, a := range r.s.d.attempts {
		a := a
		if a.SubscriptionID == subscriptionID {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LedgerRepo) CountInFlightAttempts(_ context.Context, _ ports.DBTX, subscriptionID uuid.UUID, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.d.attempts {
		if a.SubscriptionID == subscriptionID && !a.IsResolved() && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func isStale(a domain.PaymentAttempt, cutoff time.Time) bool {
	return a.CreatedAt.Before(cutoff) && (!a.IsResolved() || !a.IsSuccessful)
}

func (r *LedgerRepo) CountStaleAttempts(_ context.Context, _ ports.DBTX, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.d.attempts {
		if isStale(a, cutoff) {
			n++
		}
	}
	return n, nil
}

func (r *LedgerRepo) DeleteStaleAttempts(_ context.Context, _ ports.DBTX, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("Ledger.DeleteStaleAttempts"); err != nil {
		return 0, err
	}
	var n int64
	for ref, a := range r.s.d.attempts {
		if isStale(a, cutoff) {
			delete(r.s.d.attempts, ref)
			n++
		}
	}
	return n, nil
}

func (r *LedgerRepo) FailOrphanedBillingRecords(_ context.Context, _ ports.DBTX, cutoff, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	referenced := map[uuid.UUID]bool{}
	for _, a := range r.s.d.attempts {
		if a.BillingRecordID != nil {
			referenced[*a.BillingRecordID] = true
		}
	}
	var n int64
	for id, rec := range r.s.d.records {
		if rec.Status == domain.BillingStatusPending && rec.CreatedAt.Before(cutoff) && !referenced[id] {
			rec.Status = domain.BillingStatusFailed
			rec.UpdatedAt = now
			r.s.d.records[id] = rec
			n++
		}
	}
	return n, nil
}

func (r *LedgerRepo) CreateRefundRequest(_ context.Context, _ ports.DBTX, req *domain.RefundRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.refunds = append(r.s.d.refunds, *req)
	return nil
}

func (r *LedgerRepo) ListRefundRequests(_ context.Context, _ ports.DBTX, adminID string) ([]*domain.RefundRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.RefundRequest
	for i := len(r.s.d.refunds) - 1; i >= 0; i-- {
		req := r.s.d.refunds[i]
		if req.AdminID == adminID {
			out = append(out, &req)
		}
	}
	return out, nil
}

var _ ports.LedgerRepository = (*LedgerRepo)(nil)
