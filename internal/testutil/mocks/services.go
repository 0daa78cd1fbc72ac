package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
)

// MockBillingService is a testify mock of ports.BillingService
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) Enroll(ctx context.Context, admin domain.Admin) (*ports.EnrollResult, error) {
	args := m.Called(ctx, admin)
	res, _ := args.Get(0).(*ports.EnrollResult)
	return res, args.Error(1)
}

func (m *MockBillingService) RequestPayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentInitiation, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.PaymentInitiation)
	return res, args.Error(1)
}

func (m *MockBillingService) VerifyPayment(ctx context.Context, req ports.VerifyPaymentRequest) (*ports.ConfirmResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.ConfirmResult)
	return res, args.Error(1)
}

func (m *MockBillingService) ConfirmPayment(ctx context.Context, req ports.ConfirmRequest) (*ports.ConfirmResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.ConfirmResult)
	return res, args.Error(1)
}

func (m *MockBillingService) Cancel(ctx context.Context, adminID string) (*domain.Subscription, error) {
	args := m.Called(ctx, adminID)
	res, _ := args.Get(0).(*domain.Subscription)
	return res, args.Error(1)
}

func (m *MockBillingService) Suspend(ctx context.Context, adminID string) (*domain.Subscription, error) {
	args := m.Called(ctx, adminID)
	res, _ := args.Get(0).(*domain.Subscription)
	return res, args.Error(1)
}

func (m *MockBillingService) MarkPaymentDue(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBillingService) ExpireIfStale(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	args := m.Called(ctx, id, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockBillingService) Status(ctx context.Context, adminID string) (*ports.StatusView, error) {
	args := m.Called(ctx, adminID)
	res, _ := args.Get(0).(*ports.StatusView)
	return res, args.Error(1)
}

func (m *MockBillingService) Access(ctx context.Context, adminID string) (*ports.AccessView, error) {
	args := m.Called(ctx, adminID)
	res, _ := args.Get(0).(*ports.AccessView)
	return res, args.Error(1)
}

func (m *MockBillingService) BillingHistory(ctx context.Context, adminID string, limit int) ([]*domain.BillingRecord, error) {
	args := m.Called(ctx, adminID, limit)
	res, _ := args.Get(0).([]*domain.BillingRecord)
	return res, args.Error(1)
}

func (m *MockBillingService) PaymentHistory(ctx context.Context, adminID string, limit int) ([]*domain.PaymentAttempt, error) {
	args := m.Called(ctx, adminID, limit)
	res, _ := args.Get(0).([]*domain.PaymentAttempt)
	return res, args.Error(1)
}

func (m *MockBillingService) LookupPayment(ctx context.Context, adminID, ref string) (*domain.PaymentAttempt, error) {
	args := m.Called(ctx, adminID, ref)
	res, _ := args.Get(0).(*domain.PaymentAttempt)
	return res, args.Error(1)
}

func (m *MockBillingService) CreateRefundRequest(ctx context.Context, req ports.RefundRequestInput) (*domain.RefundRequest, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.RefundRequest)
	return res, args.Error(1)
}

func (m *MockBillingService) ListRefundRequests(ctx context.Context, adminID string) ([]*domain.RefundRequest, error) {
	args := m.Called(ctx, adminID)
	res, _ := args.Get(0).([]*domain.RefundRequest)
	return res, args.Error(1)
}

// MockSweeper is a testify mock of ports.Sweeper
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Run(ctx context.Context, opts ports.SweepOptions) (*ports.SweepReport, error) {
	args := m.Called(ctx, opts)
	res, _ := args.Get(0).(*ports.SweepReport)
	return res, args.Error(1)
}

var (
	_ ports.BillingService = (*MockBillingService)(nil)
	_ ports.Sweeper        = (*MockSweeper)(nil)
)
