package metrics

import "time"

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

// NewNoopMetrics returns a Recorder that does nothing.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordVerification(string, time.Duration)                 {}
func (n *NoopMetrics) SessionOpened()                                           {}
func (n *NoopMetrics) SessionReleased()                                         {}
func (n *NoopMetrics) RecordHTTPRequest(string, string, string, time.Duration) {}
