package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_AlwaysUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Now().Location())
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}

func TestStartAndEndOfDay(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)

	tests := []struct {
		name      string
		input     time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "noon UTC",
			input:     time.Date(2025, 11, 20, 12, 30, 45, 0, time.UTC),
			wantStart: "2025-11-20 00:00:00 +0000 UTC",
			wantEnd:   "2025-11-20 23:59:59.999999999 +0000 UTC",
		},
		{
			name:      "local time just after midnight is previous UTC day",
			input:     time.Date(2025, 11, 21, 0, 30, 0, 0, kathmandu),
			wantStart: "2025-11-20 00:00:00 +0000 UTC",
			wantEnd:   "2025-11-20 23:59:59.999999999 +0000 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStart, StartOfDay(tt.input).String())
			assert.Equal(t, tt.wantEnd, EndOfDay(tt.input).String())
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"exactly three days", now.Add(3 * Day), 3},
		{"just under three days", now.Add(3*Day - time.Second), 2},
		{"less than a day", now.Add(time.Hour), 0},
		{"already passed", now.Add(-time.Hour), 0},
		{"same instant", now, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(now, tt.end))
		})
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := &FixedClock{T: start}

	assert.Equal(t, start, clock.Now())
	clock.Advance(31 * time.Minute)
	assert.Equal(t, start.Add(31*time.Minute), clock.Now())
	assert.Equal(t, "2025-06-01", DateKey(clock.Now()))
}
