package course

import "time"

// AnnouncementFeedEntry is one raw announcement from the upstream feed,
// decoded but not yet filtered or normalized. The endpoint returns entries
// most-recent-first; that ordering is an upstream contract the engine
// relies on.
type AnnouncementFeedEntry struct {
	ID        string
	Title     string
	Message   string // HTML body as returned upstream
	URL       string
	Published bool
	PostedAt  time.Time
}

// AssignmentFeedEntry is one raw assignment from the upcoming-assignments
// feed, sorted ascending by due date upstream. Unlock and due timestamps
// may be absent.
type AssignmentFeedEntry struct {
	ID       string
	Name     string
	HTMLURL  string
	UnlockAt *time.Time
	DueAt    *time.Time
}
