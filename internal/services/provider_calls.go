package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capability names used in logs, metrics and the call log
const (
	CapabilitySentiment  = "sentiment"
	CapabilityGeneration = "generation"
	CapabilitySpeech     = "speech"
)

const defaultCallLogSize = 100

// ProviderCall is one tracked call to an external provider
type ProviderCall struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Capability  string        `json:"capability"`
	Provider    string        `json:"provider"`
	InputLength int           `json:"inputLength"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}

// CallLog keeps the most recent provider calls in memory
type CallLog struct {
	mu    sync.RWMutex
	calls []ProviderCall
	limit int
}

// NewCallLog creates a call log holding at most limit entries
func NewCallLog(limit int) *CallLog {
	if limit <= 0 {
		limit = defaultCallLogSize
	}
	return &CallLog{
		calls: make([]ProviderCall, 0),
		limit: limit,
	}
}

// Record adds a call, dropping the oldest entry when full
func (l *CallLog) Record(call ProviderCall) {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.calls) >= l.limit {
		l.calls = l.calls[1:]
	}
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the tracked calls, oldest first
func (l *CallLog) Calls() []ProviderCall {
	l.mu.RLock()
	defer l.mu.RUnlock()

	calls := make([]ProviderCall, len(l.calls))
	copy(calls, l.calls)
	return calls
}

// Clear drops the call history
func (l *CallLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = make([]ProviderCall, 0)
}
