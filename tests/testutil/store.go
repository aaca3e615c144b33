package testutil

import (
	"testing"
	"time"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// FixedClock returns a clock function that always reports now.
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

// NumericTask builds a valid NUMERIC task for tests.
func NumericTask(id string, freq model.Frequency, target float64, lastUpdated time.Time) model.Task {
	return model.Task{
		ID:          id,
		Title:       "Task " + id,
		Group:       model.DefaultGroup,
		Type:        model.TaskTypeNumeric,
		Frequency:   freq,
		TargetValue: target,
		LastUpdated: lastUpdated,
		ActivityLog: []int64{},
		History:     []model.HistoryEntry{},
	}
}
