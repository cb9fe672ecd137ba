package models

import "time"

// IssueSeverity separates blocking errors from advisory warnings.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Validation issue codes.
const (
	IssueEmptyBatch      = "EMPTY_BATCH"
	IssueMissingField    = "MISSING_FIELD"
	IssueInvalidDate     = "INVALID_DATE"
	IssueDuplicateDate   = "DUPLICATE_DATE"
	IssueDuplicateDay    = "DUPLICATE_DAY"
	IssueDayOutOfMonth   = "DAY_OUT_OF_MONTH"
	IssueInvalidTime     = "INVALID_TIME_FORMAT"
	IssueUnsetTime       = "UNSET_TIME"
	IssueLowRowCount     = "LOW_ROW_COUNT"
	IssueInvalidMonthArg = "INVALID_MONTH"
)

// ValidationIssue is one finding of a validation pass. Row is 1-based; 0 means batch-level.
type ValidationIssue struct {
	Row      int           `json:"row,omitempty"`
	Field    string        `json:"field,omitempty"`
	Code     string        `json:"code"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// ValidationResult is produced per validation pass and consumed once.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// HasWarnings reports whether the caller must confirm before proceeding.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// SkippedLine records a data line dropped by the parser. Line is 1-based and counts the header.
type SkippedLine struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// YearParseResult carries yearly rows plus the lines that were skipped.
type YearParseResult struct {
	Rows       []PrayerDay   `json:"rows"`
	Skipped    []SkippedLine `json:"skipped"`
	TotalLines int           `json:"total_lines"`
}

// MonthParseResult carries monthly rows plus the lines that were skipped.
type MonthParseResult struct {
	Rows       []MonthlyRow  `json:"rows"`
	Skipped    []SkippedLine `json:"skipped"`
	TotalLines int           `json:"total_lines"`
}

// ImportMode distinguishes destructive yearly replacement from monthly upsert.
type ImportMode string

const (
	ImportModeYear    ImportMode = "year"
	ImportModeMonth   ImportMode = "month"
	ImportModeClear   ImportMode = "clear"
	ImportModeRestore ImportMode = "restore"
)

// RemoteStatus reports what happened to the remote copy after a local save.
type RemoteStatus string

const (
	RemoteSynced      RemoteStatus = "synced"
	RemoteQueued      RemoteStatus = "queued"
	RemoteFailed      RemoteStatus = "failed"
	RemoteCircuitOpen RemoteStatus = "circuit_open"
	RemoteDisabled    RemoteStatus = "disabled"
)

// RemoteOutcome describes the remote half of a persist.
type RemoteOutcome struct {
	Status RemoteStatus `json:"status"`
	JobID  string       `json:"job_id,omitempty"`
	Error  string       `json:"error,omitempty"`
	At     *time.Time   `json:"at,omitempty"`
}

// ImportReport summarises an import so callers can report partial success.
type ImportReport struct {
	Mode         ImportMode       `json:"mode"`
	Imported     int              `json:"imported"`
	TotalLines   int              `json:"total_lines"`
	Skipped      []SkippedLine    `json:"skipped"`
	Validation   ValidationResult `json:"validation"`
	Committed    bool             `json:"committed"`
	TimelineSize int              `json:"timeline_size"`
	Remote       *RemoteOutcome   `json:"remote,omitempty"`
	Changes      *TimelineDiff    `json:"changes,omitempty"`
}

// Change kinds reported by a TimelineDiff.
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
	ChangeUpdated = "changed"
)

// DayChange describes how one date differs between two timelines.
type DayChange struct {
	Date   string   `json:"date"`
	Kind   string   `json:"kind"`
	Fields []string `json:"fields,omitempty"`
}

// TimelineDiff summarises the differences between two timelines.
type TimelineDiff struct {
	Added   int         `json:"added"`
	Removed int         `json:"removed"`
	Changed int         `json:"changed"`
	Days    []DayChange `json:"days"`
}

// Empty reports whether both timelines were identical.
func (d TimelineDiff) Empty() bool {
	return d.Added == 0 && d.Removed == 0 && d.Changed == 0
}

// ScheduleStatus summarises the active timeline for operators.
type ScheduleStatus struct {
	Source        TimelineSource `json:"source"`
	Days          int            `json:"days"`
	FirstDate     string         `json:"first_date,omitempty"`
	LastDate      string         `json:"last_date,omitempty"`
	LastUpdated   *time.Time     `json:"last_updated,omitempty"`
	RemoteEnabled bool           `json:"remote_enabled"`
	LastSync      *RemoteOutcome `json:"last_sync,omitempty"`
	PendingSyncs  int            `json:"pending_syncs"`
	Breakers      interface{}    `json:"breakers,omitempty"`
}
