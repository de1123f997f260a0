package domain

import "time"

// QuestionOutcome labels how a question concluded.
type QuestionOutcome string

const (
	QuestionOutcomeAnswered QuestionOutcome = "answered"
	QuestionOutcomeFallback QuestionOutcome = "fallback"
	QuestionOutcomeError    QuestionOutcome = "error"
	QuestionOutcomeCanceled QuestionOutcome = "canceled"
	QuestionOutcomeRejected QuestionOutcome = "rejected"
)

// Metrics is the observability surface consumed by the orchestration core.
type Metrics interface {
	ObserveQuestion(outcome QuestionOutcome, duration time.Duration)
	ObserveFallback(state string, code ErrorCode)
	ObserveProviderCall(providerID string, duration time.Duration, err error)
	ObserveDiscovery(providerID string, err error)
	SetActiveConnections(n int)
	AddActiveConnections(delta int)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveQuestion(QuestionOutcome, time.Duration)   {}
func (NopMetrics) ObserveFallback(string, ErrorCode)                {}
func (NopMetrics) ObserveProviderCall(string, time.Duration, error) {}
func (NopMetrics) ObserveDiscovery(string, error)                   {}
func (NopMetrics) SetActiveConnections(int)                         {}
func (NopMetrics) AddActiveConnections(int)                         {}
