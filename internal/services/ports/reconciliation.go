package ports

import (
	"context"
	"time"
)

// SweepOptions tunes one reconciliation run
type SweepOptions struct {
	// OlderThan is the age after which failed and unresolved attempts are removed
	OlderThan     time.Duration
	DryRun        bool
	SkipReminders bool
}

// SweepReport counts what each pass did, or would have done in a dry run
type SweepReport struct {
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration"`
	DryRun             bool          `json:"dry_run"`
	MarkedPaymentDue   int           `json:"marked_payment_due"`
	StaleAttempts      int64         `json:"stale_attempts_removed"`
	OrphanedRecords    int64         `json:"orphaned_billing_records_failed"`
	Expired            int           `json:"expired"`
	RemindersSent      int           `json:"reminders_sent"`
	RemindersDuplicate int           `json:"reminders_skipped"`
	Errors             []string      `json:"errors,omitempty"`
}

// Sweeper runs the reconciliation passes
type Sweeper interface {
	Run(ctx context.Context, opts SweepOptions) (*SweepReport, error)
}
