package dto

import "time"

// ActivityQuery mirrors supported audit listing filters.
type ActivityQuery struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	From       *time.Time
	To         *time.Time
	Cursor     string
	Limit      int
}

// ArchiveResult reports an archival run.
type ArchiveResult struct {
	Archived int64      `json:"archived"`
	Cutoff   *time.Time `json:"cutoff,omitempty"`
}

// FlagResult reports a donation auto-flag run.
type FlagResult struct {
	Flagged int `json:"flagged"`
}

// ArchiveActivityRequest optionally overrides the retention cutoff for a manual archival run.
type ArchiveActivityRequest struct {
	Before *time.Time `json:"before"`
}
