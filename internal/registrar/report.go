package registrar

import "sort"

type TopicResult struct {
	Topic    string `json:"topic"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Report separates topics that need attention (Failed) from those that
// ended up subscribed, including the ones that self-healed after retries.
type Report struct {
	Succeeded []TopicResult `json:"succeeded"`
	Failed    []TopicResult `json:"failed"`
}

func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

func (r *Report) sorted() {
	sort.Slice(r.Succeeded, func(i, j int) bool { return r.Succeeded[i].Topic < r.Succeeded[j].Topic })
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Topic < r.Failed[j].Topic })
}
