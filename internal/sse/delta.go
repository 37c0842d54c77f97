package sse

// DeltaTracker decides which progress snapshots are worth sending. A delta
// goes out only when the title or summary changed or the number of complete
// sections grew; a snapshot with fewer complete sections than the last one
// sent is never emitted.
type DeltaTracker struct {
	title    string
	summary  string
	sections int
	sent     int
}

// Observe returns true when p should be sent, and records it as sent.
func (t *DeltaTracker) Observe(p Progress) bool {
	n := len(p.Sections)
	if n < t.sections {
		return false
	}
	if p.Title == "" && p.Summary == "" && n == 0 {
		return false
	}
	if p.Title == t.title && p.Summary == t.summary && n == t.sections {
		return false
	}
	t.title, t.summary, t.sections = p.Title, p.Summary, n
	t.sent++
	return true
}

// Sent is the number of snapshots accepted so far.
func (t *DeltaTracker) Sent() int { return t.sent }

// Feed parses accumulated upstream text and returns the progress to send,
// if any.
func (t *DeltaTracker) Feed(accumulated string) (Progress, bool) {
	p, ok := ParseProgress(accumulated)
	if !ok || !t.Observe(p) {
		return Progress{}, false
	}
	return p, true
}
