package canvas

import "time"

// AnnouncementDTO mirrors one element of the announcements listing.
// Ids decode as strings thanks to the canvas-string-ids content type.
type AnnouncementDTO struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"` // HTML
	URL       string     `json:"url"`
	Published bool       `json:"published"`
	PostedAt  *time.Time `json:"posted_at"`
}

// AssignmentDTO mirrors one element of the assignment-group listing.
// unlock_at and due_at are nullable upstream.
type AssignmentDTO struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	HTMLURL  string     `json:"html_url"`
	UnlockAt *time.Time `json:"unlock_at"`
	DueAt    *time.Time `json:"due_at"`
}

// ErrorDTO mirrors the error payload Canvas returns on non-2xx responses.
type ErrorDTO struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}
