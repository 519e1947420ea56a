package canvas

import (
	"time"

	"github.com/coursehub/course-herald/internal/domain/course"
)

// Mapper converts Canvas DTOs to domain feed entries.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// AnnouncementEntry maps an announcement DTO to a feed entry.
func (m *Mapper) AnnouncementEntry(dto AnnouncementDTO) course.AnnouncementFeedEntry {
	entry := course.AnnouncementFeedEntry{
		ID:        dto.ID,
		Title:     dto.Title,
		Message:   dto.Message,
		URL:       dto.URL,
		Published: dto.Published,
	}
	if dto.PostedAt != nil {
		entry.PostedAt = *dto.PostedAt
	}
	return entry
}

// AnnouncementEntries maps a full announcements listing, preserving order.
func (m *Mapper) AnnouncementEntries(dtos []AnnouncementDTO) []course.AnnouncementFeedEntry {
	entries := make([]course.AnnouncementFeedEntry, len(dtos))
	for i, dto := range dtos {
		entries[i] = m.AnnouncementEntry(dto)
	}
	return entries
}

// AssignmentEntry maps an assignment DTO to a feed entry.
func (m *Mapper) AssignmentEntry(dto AssignmentDTO) course.AssignmentFeedEntry {
	return course.AssignmentFeedEntry{
		ID:       dto.ID,
		Name:     dto.Name,
		HTMLURL:  dto.HTMLURL,
		UnlockAt: copyTime(dto.UnlockAt),
		DueAt:    copyTime(dto.DueAt),
	}
}

// AssignmentEntries maps a full assignment listing, preserving order.
func (m *Mapper) AssignmentEntries(dtos []AssignmentDTO) []course.AssignmentFeedEntry {
	entries := make([]course.AssignmentFeedEntry, len(dtos))
	for i, dto := range dtos {
		entries[i] = m.AssignmentEntry(dto)
	}
	return entries
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
