package contracts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementRecord_DisclosedAt(t *testing.T) {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		time string
		want time.Time
	}{
		{"full time", "15:30:00", time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)},
		{"hour and minute", "09:05", time.Date(2024, 5, 10, 9, 5, 0, 0, time.UTC)},
		{"blank", "", day},
		{"garbage", "n/a", day},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := StatementRecord{DisclosedDate: day, DisclosedTime: tt.time}
			if got := s.DisclosedAt(); !got.Equal(tt.want) {
				t.Errorf("DisclosedAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatementRecord_HasNoiseFlag(t *testing.T) {
	assert.False(t, (&StatementRecord{}).HasNoiseFlag())
	assert.True(t, (&StatementRecord{ChangesInAccountingEstimates: true}).HasNoiseFlag())
	// restatements alone are not screened out
	assert.False(t, (&StatementRecord{RetrospectiveRestatement: true}).HasNoiseFlag())
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-05", "20240105", "2024-01-05T00:00:00Z", " 2024-01-05 "} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), in)
	}

	_, err := ParseDate("05/01/2024")
	assert.Error(t, err)
}

func TestSignalQuery_Matches(t *testing.T) {
	row := &TechnicalSignal{
		Code:        "1234",
		SignalCount: 4,
		First:       true,
		Overheating: true,
		ShortCount:  2,
	}

	tests := []struct {
		name  string
		query SignalQuery
		want  bool
	}{
		{"count only", SignalQuery{MinCount: 3}, true},
		{"count too high", SignalQuery{MinCount: 5}, false},
		{"first only", SignalQuery{MinCount: 3, FirstOnly: true}, true},
		{"overheated excluded", SignalQuery{MinCount: 3, ExcludeStretched: true}, false},
		{"other code", SignalQuery{Code: "9999"}, false},
		{"short side uses short count", SignalQuery{Side: SideShort, MinCount: 3}, false},
		{"short first", SignalQuery{Side: SideShort, FirstOnly: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Matches(row))
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := fmt.Errorf("run: %w", NewConfigurationError("hold_days", "must be positive, got %d", 0))

	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "hold_days")
	assert.False(t, IsConfigurationError(errors.New("plain")))
}

func TestSummary_Empty(t *testing.T) {
	assert.True(t, (&Summary{}).Empty())
	assert.False(t, (&Summary{Trades: 1}).Empty())
}
