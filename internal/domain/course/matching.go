package course

import (
	"regexp"
	"strings"
)

// Intent classifies what a user is asking the bot for.
type Intent string

const (
	IntentNone         Intent = ""
	IntentHelp         Intent = "help"
	IntentAdd          Intent = "add"
	IntentRemove       Intent = "remove"
	IntentAnnouncement Intent = "announcement"
	IntentHomework     Intent = "homework"
	IntentTests        Intent = "tests"
)

// Matcher resolves free-form message text to a tracked course.
// It is deliberately narrow so the keyword implementation can be swapped
// for a smarter classifier later.
type Matcher interface {
	// MatchCourse returns the first course whose name or nickname
	// appears in the text.
	MatchCourse(text string) (Course, bool)
}

// Classifier detects the user's intent in free-form message text.
type Classifier interface {
	// ClassifyQuery returns the announcement/homework/tests intent,
	// or IntentNone when no query keyword is present.
	ClassifyQuery(text string) Intent
}

// Keyword patterns shared by chat commands and microblog mentions.
var (
	helpPattern         = regexp.MustCompile(`(?i)help`)
	addPattern          = regexp.MustCompile(`(?i)add`)
	removePattern       = regexp.MustCompile(`(?i)(remove|delete)`)
	announcementPattern = regexp.MustCompile(`(?i)(announcement|news)`)
	homeworkPattern     = regexp.MustCompile(`(?i)(homework|hw)`)
	testsPattern        = regexp.MustCompile(`(?i)(test|exam|quiz|tests|exams|quizzes)`)
)

// KeywordMatcher matches courses by case-insensitive name/nickname search.
type KeywordMatcher struct {
	courses  []Course
	patterns []*regexp.Regexp
}

// NewKeywordMatcher compiles one pattern per course. Course order is the
// configuration order, so the first configured match wins.
func NewKeywordMatcher(courses []Course) *KeywordMatcher {
	patterns := make([]*regexp.Regexp, len(courses))
	for i, c := range courses {
		alts := regexp.QuoteMeta(c.Name)
		if c.Nick != "" {
			alts += "|" + regexp.QuoteMeta(c.Nick)
		}
		patterns[i] = regexp.MustCompile(`(?i)(` + alts + `)`)
	}
	return &KeywordMatcher{courses: courses, patterns: patterns}
}

// MatchCourse implements Matcher.
func (m *KeywordMatcher) MatchCourse(text string) (Course, bool) {
	for i, p := range m.patterns {
		if p.MatchString(text) {
			return m.courses[i], true
		}
	}
	return Course{}, false
}

// KeywordClassifier classifies intent by keyword search.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword-based intent classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// ClassifyQuery implements Classifier. Announcement wins over homework,
// homework over tests, matching the precedence users expect from the
// query keywords.
func (c *KeywordClassifier) ClassifyQuery(text string) Intent {
	switch {
	case announcementPattern.MatchString(text):
		return IntentAnnouncement
	case homeworkPattern.MatchString(text):
		return IntentHomework
	case testsPattern.MatchString(text):
		return IntentTests
	default:
		return IntentNone
	}
}

// IsHelp reports whether the text contains the help keyword.
func IsHelp(text string) bool { return helpPattern.MatchString(text) }

// MutationIntent returns IntentAdd or IntentRemove if the text contains an
// add/remove/delete keyword, IntentNone otherwise. Add wins when both
// keywords are present, matching first-match-wins precedence.
func MutationIntent(text string) Intent {
	switch {
	case addPattern.MatchString(text):
		return IntentAdd
	case removePattern.MatchString(text):
		return IntentRemove
	default:
		return IntentNone
	}
}

// NormalizeText lowercases and trims message text for logging.
func NormalizeText(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}
