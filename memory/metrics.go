package memory

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                    {}
func (NoopMetrics) Miss()                   {}
func (NoopMetrics) Evict(EvictReason)       {}
func (NoopMetrics) Size(count, cost uint64) {}
