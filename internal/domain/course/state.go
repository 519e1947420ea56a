package course

// State is the per-course mutable aggregate maintained by the change
// detection engine. Nothing outside the engine mutates it; readers get
// copies via Snapshot.
type State struct {
	// LastAnnouncement is the most recent announcement already surfaced,
	// or nil when none has been seen. A nil pointer is the explicit
	// "no announcement" case; there is no empty-struct sentinel.
	LastAnnouncement *Announcement

	// KnownHomeworkIDs / KnownTestIDs hold every assignment id already
	// surfaced (or primed at startup) per kind.
	KnownHomeworkIDs map[string]struct{}
	KnownTestIDs     map[string]struct{}

	// Homework / Tests are the upcoming assignment lists in the order
	// they were surfaced (ascending due date).
	Homework []Assignment
	Tests    []Assignment
}

// NewState creates an empty course state.
func NewState() *State {
	return &State{
		KnownHomeworkIDs: make(map[string]struct{}),
		KnownTestIDs:     make(map[string]struct{}),
	}
}

// Knows reports whether the assignment id was already surfaced for the kind.
func (s *State) Knows(kind AssignmentKind, id string) bool {
	_, ok := s.knownSet(kind)[id]
	return ok
}

// CommitAnnouncement records an announcement as surfaced.
func (s *State) CommitAnnouncement(a Announcement) {
	copied := a
	s.LastAnnouncement = &copied
}

// CommitAssignments records assignments as surfaced for the kind, in order.
func (s *State) CommitAssignments(kind AssignmentKind, items []Assignment) {
	known := s.knownSet(kind)
	for _, a := range items {
		if _, ok := known[a.ID]; ok {
			continue
		}
		known[a.ID] = struct{}{}
		if kind == KindTests {
			s.Tests = append(s.Tests, a)
		} else {
			s.Homework = append(s.Homework, a)
		}
	}
}

// Assignments returns the surfaced assignment list for the kind.
func (s *State) Assignments(kind AssignmentKind) []Assignment {
	if kind == KindTests {
		return s.Tests
	}
	return s.Homework
}

// Snapshot returns a deep copy safe to hand to readers.
func (s *State) Snapshot() State {
	out := State{
		KnownHomeworkIDs: make(map[string]struct{}, len(s.KnownHomeworkIDs)),
		KnownTestIDs:     make(map[string]struct{}, len(s.KnownTestIDs)),
		Homework:         make([]Assignment, len(s.Homework)),
		Tests:            make([]Assignment, len(s.Tests)),
	}
	if s.LastAnnouncement != nil {
		copied := *s.LastAnnouncement
		out.LastAnnouncement = &copied
	}
	for id := range s.KnownHomeworkIDs {
		out.KnownHomeworkIDs[id] = struct{}{}
	}
	for id := range s.KnownTestIDs {
		out.KnownTestIDs[id] = struct{}{}
	}
	copy(out.Homework, s.Homework)
	copy(out.Tests, s.Tests)
	return out
}

func (s *State) knownSet(kind AssignmentKind) map[string]struct{} {
	if kind == KindTests {
		return s.KnownTestIDs
	}
	return s.KnownHomeworkIDs
}

// SeenIDs is the serializable dedup core of a course state, mirrored to
// the warm-state cache so restarts do not re-surface items.
type SeenIDs struct {
	LastAnnouncementID string   `json:"last_announcement_id"`
	HomeworkIDs        []string `json:"homework_ids"`
	TestIDs            []string `json:"test_ids"`
}

// Seen extracts the dedup core of the state.
func (s *State) Seen() SeenIDs {
	out := SeenIDs{
		HomeworkIDs: make([]string, 0, len(s.KnownHomeworkIDs)),
		TestIDs:     make([]string, 0, len(s.KnownTestIDs)),
	}
	if s.LastAnnouncement != nil {
		out.LastAnnouncementID = s.LastAnnouncement.ID
	}
	for id := range s.KnownHomeworkIDs {
		out.HomeworkIDs = append(out.HomeworkIDs, id)
	}
	for id := range s.KnownTestIDs {
		out.TestIDs = append(out.TestIDs, id)
	}
	return out
}

// RestoreSeen rebuilds the dedup core from a cached snapshot. Only ids are
// restored; item lists refill as new assignments surface.
func (s *State) RestoreSeen(seen SeenIDs) {
	if seen.LastAnnouncementID != "" {
		s.LastAnnouncement = &Announcement{ID: seen.LastAnnouncementID}
	}
	for _, id := range seen.HomeworkIDs {
		s.KnownHomeworkIDs[id] = struct{}{}
	}
	for _, id := range seen.TestIDs {
		s.KnownTestIDs[id] = struct{}{}
	}
}
