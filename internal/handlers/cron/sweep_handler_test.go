package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/testutil/mocks"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/resilience"
)

const secret = "cron-test-secret"

func newMux(sweeper ports.Sweeper, cronSecret string) *http.ServeMux {
	mux := http.NewServeMux()
	NewSweepHandler(sweeper, zap.NewNop(), cronSecret, resilience.TestTimeoutConfig()).Register(mux)
	return mux
}

func TestSweep_Authentication(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		prepare func(r *http.Request)
		status  int
	}{
		{"header", secret, func(r *http.Request) { r.Header.Set("X-Cron-Secret", secret) }, http.StatusOK},
		{"bearer", secret, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+secret) }, http.StatusOK},
		{"query", secret, func(r *http.Request) { r.URL.RawQuery = "secret=" + secret }, http.StatusOK},
		{"wrong secret", secret, func(r *http.Request) { r.Header.Set("X-Cron-Secret", "guess") }, http.StatusUnauthorized},
		{"nothing", secret, func(r *http.Request) {}, http.StatusUnauthorized},
		{"unconfigured secret", "", func(r *http.Request) { r.Header.Set("X-Cron-Secret", "") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := &mocks.MockSweeper{}
			sweeper.On("Run", mock.Anything, ports.SweepOptions{}).Return(&ports.SweepReport{}, nil).Maybe()

			req := httptest.NewRequest(http.MethodPost, "/cron/sweep", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			newMux(sweeper, tt.secret).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				sweeper.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSweep_Options(t *testing.T) {
	sweeper := &mocks.MockSweeper{}
	sweeper.On("Run", mock.Anything, ports.SweepOptions{
		OlderThan:     45 * time.Minute,
		DryRun:        true,
		SkipReminders: true,
	}).Return(&ports.SweepReport{DryRun: true, Expired: 2}, nil)

	req := httptest.NewRequest(http.MethodPost, "/cron/sweep",
		strings.NewReader(`{"older_than_minutes":45,"dry_run":true,"skip_reminders":true}`))
	req.Header.Set("X-Cron-Secret", secret)
	rec := httptest.NewRecorder()
	newMux(sweeper, secret).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SweepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Report.Expired)
	sweeper.AssertExpectations(t)
}

func TestSweep_InvalidWindow(t *testing.T) {
	sweeper := &mocks.MockSweeper{}
	req := httptest.NewRequest(http.MethodPost, "/cron/sweep", strings.NewReader(`{"older_than_minutes":0}`))
	req.Header.Set("X-Cron-Secret", secret)
	rec := httptest.NewRecorder()
	newMux(sweeper, secret).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweep_PartialAndFailed(t *testing.T) {
	t.Run("row errors", func(t *testing.T) {
		sweeper := &mocks.MockSweeper{}
		sweeper.On("Run", mock.Anything, mock.Anything).
			Return(&ports.SweepReport{Errors: []string{"expire 123: boom"}}, nil)

		req := httptest.NewRequest(http.MethodPost, "/cron/sweep", nil)
		req.Header.Set("X-Cron-Secret", secret)
		rec := httptest.NewRecorder()
		newMux(sweeper, secret).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusPartialContent, rec.Code)
	})

	t.Run("pass error", func(t *testing.T) {
		sweeper := &mocks.MockSweeper{}
		sweeper.On("Run", mock.Anything, mock.Anything).
			Return(&ports.SweepReport{}, errors.New("mark payment due: connection reset"))

		req := httptest.NewRequest(http.MethodPost, "/cron/sweep", nil)
		req.Header.Set("X-Cron-Secret", secret)
		rec := httptest.NewRecorder()
		newMux(sweeper, secret).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(&mocks.MockSweeper{}, secret).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cron/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestSweep_RunsUnderSweepBudget(t *testing.T) {
	budget := resilience.TestTimeoutConfig().Sweep
	sweeper := &mocks.MockSweeper{}
	sweeper.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= budget
	}), ports.SweepOptions{}).Return(&ports.SweepReport{}, nil)

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/cron/sweep", nil).WithContext(parent)
	req.Header.Set("X-Cron-Secret", secret)
	rec := httptest.NewRecorder()
	newMux(sweeper, secret).ServeHTTP(rec, req)

	// a disconnected scheduler does not cancel the sweep
	assert.Equal(t, http.StatusOK, rec.Code)
	sweeper.AssertExpectations(t)
}
