// Package metrics evaluates per-step account metrics and routes them to
// pluggable logger sinks.
package metrics

import (
	"log"
	"sync"
	"time"

	"backsim/internal/domain"
)

// Logger receives one batch of named metric values per run step. How the
// values are persisted or rendered is the logger's concern.
type Logger interface {
	Log(results map[string]float64, t time.Time, runID string)
}

// AccountMetric derives the standard per-step metric set from an account.
type AccountMetric struct{}

// Calc returns the metric values for the account's current state.
func (AccountMetric) Calc(acct *domain.Account) map[string]float64 {
	return map[string]float64{
		"account.equity":       acct.Equity().InexactFloat64(),
		"account.cash":         acct.CashBalance(acct.BaseCurrency).InexactFloat64(),
		"account.buying_power": acct.BuyingPower.InexactFloat64(),
		"account.positions":    float64(len(acct.Positions)),
		"account.orders.open":  float64(len(acct.Orders)),
	}
}

// Entry is one logged metric batch.
type Entry struct {
	RunID   string
	Time    time.Time
	Results map[string]float64
}

// MemoryLogger buffers entries in memory. Safe for concurrent runs.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger creates an empty memory logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends one batch.
func (l *MemoryLogger) Log(results map[string]float64, t time.Time, runID string) {
	copied := make(map[string]float64, len(results))
	for k, v := range results {
		copied[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{RunID: runID, Time: t, Results: copied})
}

// Entries returns all logged batches in order.
func (l *MemoryLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForRun returns the batches logged for one run, in order.
func (l *MemoryLogger) ForRun(runID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// ConsoleLogger prints each batch through a standard logger.
type ConsoleLogger struct {
	Logger *log.Logger
}

// Log prints one line per batch.
func (l ConsoleLogger) Log(results map[string]float64, t time.Time, runID string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Printf("run=%s time=%s metrics=%v", runID, t.Format(time.RFC3339), results)
}

// NopLogger discards everything.
type NopLogger struct{}

// Log does nothing.
func (NopLogger) Log(map[string]float64, time.Time, string) {}

var (
	_ Logger = (*MemoryLogger)(nil)
	_ Logger = ConsoleLogger{}
	_ Logger = NopLogger{}
)
