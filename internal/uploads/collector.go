package uploads

import "time"

// Collector accumulates parsed results from the upload step's output stream.
// It is fed line-by-line by the pipeline runner and drained once the run
// finishes.
type Collector struct {
	now     func() time.Time
	results []Result
}

// NewCollector builds a collector stamping results with the given time
// source. A nil now falls back to time.Now.
func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{now: now}
}

// Consume parses one output line, keeping the record when it is a valid
// marker line and ignoring it otherwise.
func (c *Collector) Consume(line string) {
	if result, ok := ParseLine(line, c.now()); ok {
		c.results = append(c.results, result)
	}
}

// Results returns the collected records in emission order.
func (c *Collector) Results() []Result {
	return c.results
}
