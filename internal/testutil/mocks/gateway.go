package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// MockGateway is a testify mock of ports.GatewayAdapter.
// BuildPaymentForm and SandboxCredentials answer without expectations unless Strict is set.
type MockGateway struct {
	mock.Mock
	Strict  bool
	Sandbox domain.GatewayCredentials
}

// NewMockGateway returns a gateway mock whose sandbox credentials mirror the real defaults.
func NewMockGateway() *MockGateway {
	return &MockGateway{Sandbox: domain.GatewayCredentials{
		ProductCode: "EPAYTEST",
		SecretKey:   "8gBm/:&EnhH.1/q",
		Environment: domain.EnvironmentTest,
		Sandbox:     true,
	}}
}

func (m *MockGateway) BuildPaymentForm(creds domain.GatewayCredentials, req ports.PaymentFormRequest) (*ports.PaymentForm, error) {
	if m.Strict {
		args := m.Called(creds, req)
		form, _ := args.Get(0).(*ports.PaymentForm)
		return form, args.Error(1)
	}
	return &ports.PaymentForm{
		ActionURL: "https://gateway.test/form",
		Fields: map[string]string{
			"transaction_uuid": req.TransactionRef,
			"total_amount":     req.Amount.String(),
			"product_code":     creds.ProductCode,
		},
	}, nil
}

func (m *MockGateway) Verify(ctx context.Context, creds domain.GatewayCredentials, req ports.VerifyRequest) ports.VerifyResult {
	args := m.Called(ctx, creds, req)
	return args.Get(0).(ports.VerifyResult)
}

func (m *MockGateway) SandboxCredentials() domain.GatewayCredentials {
	return m.Sandbox
}

// StaticResolver resolves every admin to the same credentials
type StaticResolver struct {
	Creds domain.GatewayCredentials
	Err   error

	mu    sync.Mutex
	calls []string
}

func (r *StaticResolver) ResolveGatewayCredentials(_ context.Context, adminID string) (domain.GatewayCredentials, error) {
	r.mu.Lock()
	r.calls = append(r.calls, adminID)
	r.mu.Unlock()
	return r.Creds, r.Err
}

// Calls returns the admin ids resolved so far
func (r *StaticResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// RecordingSink collects published transition events
type RecordingSink struct {
	mu     sync.Mutex
	events []domain.TransitionEvent
}

func (s *RecordingSink) Publish(_ context.Context, events ...domain.TransitionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// Events returns a copy of everything published
func (s *RecordingSink) Events() []domain.TransitionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TransitionEvent(nil), s.events...)
}

// Types returns the event types in publish order
func (s *RecordingSink) Types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// RecordingNotifier collects notifications and can be told to fail
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	Err  error
}

func (n *RecordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, msg)
	return nil
}

// Sent returns a copy of the delivered notifications
func (n *RecordingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

// MockPasswordVerifier is a testify mock of ports.PasswordVerifier
type MockPasswordVerifier struct {
	mock.Mock
}

func (m *MockPasswordVerifier) VerifyPassword(ctx context.Context, adminID, password string) (bool, error) {
	args := m.Called(ctx, adminID, password)
	return args.Bool(0), args.Error(1)
}

var (
	_ ports.GatewayAdapter     = (*MockGateway)(nil)
	_ ports.CredentialResolver = (*StaticResolver)(nil)
	_ ports.EventSink          = (*RecordingSink)(nil)
	_ ports.Notifier           = (*RecordingNotifier)(nil)
	_ ports.PasswordVerifier   = (*MockPasswordVerifier)(nil)
)
