package app

import (
	"sync"

	"quizboard-service/internal/domain"
)

// ReportFeed fans out report rows of freshly recorded attempts to live subscribers.
type ReportFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.UserReport]struct{}
}

func NewReportFeed() *ReportFeed {
	return &ReportFeed{subscribers: make(map[chan domain.UserReport]struct{})}
}

// Subscribe returns a channel of report rows.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ReportFeed) Subscribe() (<-chan domain.UserReport, func()) {
	ch := make(chan domain.UserReport, 16)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish never blocks; a subscriber whose buffer is full loses its oldest row.
func (f *ReportFeed) Publish(report domain.UserReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- report:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- report
		}
	}
}

// Subscribers reports how many subscribers are attached.
func (f *ReportFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
