// Package course contains the domain model for tracked courses and the
// announcement/assignment items surfaced from them.
package course

// Course is a tracked unit of instruction. Immutable after load.
type Course struct {
	// ID is the external (Canvas) course identifier.
	ID string

	// Name is the full course name, e.g. "CS101".
	Name string

	// Nick is a short alias users may write instead of the name.
	Nick string

	// HomeworkGroupID is the assignment group holding homework.
	HomeworkGroupID string

	// TestGroupID is the assignment group holding tests and quizzes.
	TestGroupID string
}

// AssignmentsLink returns the course's assignments overview URL on the
// given Canvas domain.
func (c Course) AssignmentsLink(domain string) string {
	return domain + "courses/" + c.ID + "/assignments"
}

// Announcement is a published notice tied to a course. Surfaced at most once.
type Announcement struct {
	ID      string
	Title   string
	Date    string // ISO calendar date (YYYY-MM-DD) extracted from posted_at
	Message string // plain text, markup stripped
	Link    string
}

// AssignmentKind distinguishes the two assignment groupings per course.
type AssignmentKind string

const (
	KindHomework AssignmentKind = "homework"
	KindTests    AssignmentKind = "tests"
)

// IsValid reports whether the kind is one of the known groupings.
func (k AssignmentKind) IsValid() bool {
	return k == KindHomework || k == KindTests
}

// String returns the string representation of the kind.
func (k AssignmentKind) String() string {
	return string(k)
}

// GroupID returns the course's assignment group identifier for this kind.
func (k AssignmentKind) GroupID(c Course) string {
	if k == KindTests {
		return c.TestGroupID
	}
	return c.HomeworkGroupID
}

// Assignment is a homework or test item with unlock/due dates.
// Surfaced at most once, never before unlock, never after due.
type Assignment struct {
	ID        string
	Title     string
	StartDate string // ISO calendar date of unlock_at
	DueDate   string // ISO calendar date of due_at
	Link      string
}
