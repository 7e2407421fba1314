package aggregate

// Counters tally what happened to every input line. Like aggregators they
// are owned by one worker and summed after the workers finish.
type Counters struct {
	Lines        int64 `json:"lines"`
	Parsed       int64 `json:"parsed"`
	Skipped      int64 `json:"skipped"`
	TooLong      int64 `json:"too_long"`
	Responses    int64 `json:"responses"`
	LoginRecords int64 `json:"login_records"`
	Successes    int64 `json:"successful_logins"`
	Failures     int64 `json:"failed_logins"`
	Filtered     int64 `json:"filtered"`
	Ignored      int64 `json:"ignored_requests"`
}

// Add sums o into c.
func (c *Counters) Add(o Counters) {
	c.Lines += o.Lines
	c.Parsed += o.Parsed
	c.Skipped += o.Skipped
	c.TooLong += o.TooLong
	c.Responses += o.Responses
	c.LoginRecords += o.LoginRecords
	c.Successes += o.Successes
	c.Failures += o.Failures
	c.Filtered += o.Filtered
	c.Ignored += o.Ignored
}
