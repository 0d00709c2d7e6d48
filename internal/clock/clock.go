package clock

import "time"

// Clock abstracts wall-clock time so that retention, rate windows, and
// backoff delays are deterministic under test.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Mock is a manually advanced clock. After never blocks: it delivers the
// would-be fire time immediately, which keeps backoff loops test-friendly.
type Mock struct {
	Current time.Time
	Waits   []time.Duration
}

func NewMock(start time.Time) *Mock {
	return &Mock{Current: start}
}

func (m *Mock) Now() time.Time { return m.Current }

func (m *Mock) After(d time.Duration) <-chan time.Time {
	m.Waits = append(m.Waits, d)
	m.Current = m.Current.Add(d)
	ch := make(chan time.Time, 1)
	ch <- m.Current
	return ch
}

func (m *Mock) Advance(d time.Duration) {
	m.Current = m.Current.Add(d)
}
