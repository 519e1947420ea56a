// Package present renders announcements and assignments as chat embeds
// and microblog statuses. Pure string/struct building, no I/O.
package present

import (
	"fmt"
	"strings"
	"time"

	"github.com/coursehub/course-herald/internal/application/fanout"
	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/pkg/htmltext"
)

// Embed colors per item kind.
const (
	ColorAnnouncement = 0xf24e4e
	ColorHomework     = 0x4c84ed
	ColorTests        = 0x4eeb4b
)

// embedFieldLimit is the chat platform's cap on a field value.
const embedFieldLimit = 1024

// Presenter builds outbound content. The author line and Canvas domain
// are fixed at startup.
type Presenter struct {
	author string
	domain string
	now    func() time.Time
}

// New creates a presenter.
func New(author, canvasDomain string) *Presenter {
	return &Presenter{author: author, domain: canvasDomain, now: time.Now}
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduled push content
// ─────────────────────────────────────────────────────────────────────────────

// AnnouncementEmbed renders a newly surfaced announcement.
func (p *Presenter) AnnouncementEmbed(a course.Announcement) fanout.ChatMessage {
	return fanout.ChatMessage{
		Title:  a.Title,
		URL:    a.Link,
		Color:  ColorAnnouncement,
		Author: p.author,
		Fields: []fanout.MessageField{
			{Name: "Posted:", Value: a.Date},
			{Name: "Announcement:", Value: htmltext.Truncate(a.Message, embedFieldLimit)},
		},
		Timestamp: p.now(),
	}
}

// AssignmentEmbed renders a newly surfaced assignment.
func (p *Presenter) AssignmentEmbed(kind course.AssignmentKind, a course.Assignment) fanout.ChatMessage {
	color := ColorHomework
	if kind == course.KindTests {
		color = ColorTests
	}
	return fanout.ChatMessage{
		Title:  a.Title,
		URL:    a.Link,
		Color:  color,
		Author: p.author,
		Fields: []fanout.MessageField{
			{Name: "Start Date:", Value: a.StartDate},
			{Name: "Due Date:", Value: a.DueDate},
		},
		Timestamp: p.now(),
	}
}

// AnnouncementStatus renders the microblog status for a new announcement.
func (p *Presenter) AnnouncementStatus(c course.Course, a course.Announcement) string {
	return fmt.Sprintf("[%s] %s %s", c.Name, a.Title, a.Link)
}

// AssignmentStatus renders the microblog status for a new assignment.
func (p *Presenter) AssignmentStatus(c course.Course, kind course.AssignmentKind, a course.Assignment) string {
	if kind == course.KindTests {
		return fmt.Sprintf("[%s] %s (Date: %s) %s", c.Name, a.Title, a.DueDate, a.Link)
	}
	return fmt.Sprintf("[%s] %s (Due Date: %s) %s", c.Name, a.Title, a.DueDate, a.Link)
}

// ─────────────────────────────────────────────────────────────────────────────
// Query replies
// ─────────────────────────────────────────────────────────────────────────────

// CurrentAnnouncementEmbed renders the on-demand announcement reply, or a
// placeholder when the course has no announcement yet.
func (p *Presenter) CurrentAnnouncementEmbed(state course.State) fanout.ChatMessage {
	if state.LastAnnouncement == nil {
		return fanout.ChatMessage{
			Title:     "No Recent Announcement",
			Color:     ColorAnnouncement,
			Author:    p.author,
			Timestamp: p.now(),
		}
	}
	return p.AnnouncementEmbed(*state.LastAnnouncement)
}

// AssignmentListEmbed renders the on-demand homework/tests list reply.
func (p *Presenter) AssignmentListEmbed(c course.Course, kind course.AssignmentKind, state course.State) fanout.ChatMessage {
	items := state.Assignments(kind)

	title := "Upcoming Homework"
	fieldName := "Assignments:"
	empty := "No Upcoming Homework"
	dateLabel := "Due Date"
	color := ColorHomework
	if kind == course.KindTests {
		title = "Upcoming Assessments"
		fieldName = "Assessments:"
		empty = "No Upcoming Tests"
		dateLabel = "Date"
		color = ColorTests
	}

	var b strings.Builder
	for i, a := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%s: %s)", a.Title, dateLabel, a.DueDate)
	}
	value := b.String()
	if value == "" {
		value = empty
	}

	return fanout.ChatMessage{
		Title:  title,
		URL:    c.AssignmentsLink(p.domain),
		Color:  color,
		Author: p.author,
		Fields: []fanout.MessageField{
			{Name: fieldName, Value: htmltext.Truncate(value, embedFieldLimit)},
		},
		Timestamp: p.now(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Mention replies
// ─────────────────────────────────────────────────────────────────────────────

// MentionReply renders the microblog reply for a qualifying mention: the
// single most relevant known item, or a "nothing found" placeholder.
func (p *Presenter) MentionReply(username string, intent course.Intent, state course.State) string {
	prefix := "@" + username + " "

	switch intent {
	case course.IntentAnnouncement:
		if state.LastAnnouncement == nil {
			return prefix + "No recent announcement."
		}
		a := state.LastAnnouncement
		return fmt.Sprintf("%s%s (%s) %s", prefix, a.Title, a.Date, a.Link)

	case course.IntentHomework:
		items := state.Assignments(course.KindHomework)
		if len(items) == 0 {
			return prefix + "No upcoming homework."
		}
		a := items[0] // earliest due is the most relevant
		return fmt.Sprintf("%s%s (Due Date: %s) %s", prefix, a.Title, a.DueDate, a.Link)

	case course.IntentTests:
		items := state.Assignments(course.KindTests)
		if len(items) == 0 {
			return prefix + "No upcoming tests."
		}
		a := items[0]
		return fmt.Sprintf("%s%s (Date: %s) %s", prefix, a.Title, a.DueDate, a.Link)
	}

	return ""
}
