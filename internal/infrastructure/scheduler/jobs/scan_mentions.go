package jobs

import (
	"context"

	"github.com/coursehub/course-herald/internal/application/mentions"
)

// ScanMentions wraps the mention scanner as a scheduled job.
type ScanMentions struct {
	scanner *mentions.Scanner
}

// NewScanMentions creates the mention scan job.
func NewScanMentions(scanner *mentions.Scanner) *ScanMentions {
	return &ScanMentions{scanner: scanner}
}

// Name returns the job name.
func (j *ScanMentions) Name() string { return "scan_mentions" }

// Run executes one mention scan.
func (j *ScanMentions) Run(ctx context.Context) error {
	return j.scanner.Scan(ctx)
}
