package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the pipeline state of a work item. The zero value is the
// unset state, stored as NULL.
type Status string

const (
	StatusNone             Status = ""
	StatusQueuedSoftware   Status = "queued_software"
	StatusQueuedConsulting Status = "queued_consulting"
	StatusInProgress       Status = "in_progress"
	StatusDeveloped        Status = "developed"
	StatusBuilt            Status = "built"
	StatusReviewing        Status = "reviewing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusBlocked          Status = "blocked"
)

// Statuses lists every pipeline state in board order.
var Statuses = []Status{
	StatusNone,
	StatusQueuedSoftware,
	StatusQueuedConsulting,
	StatusInProgress,
	StatusDeveloped,
	StatusBuilt,
	StatusReviewing,
	StatusCompleted,
	StatusFailed,
	StatusBlocked,
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	if s == StatusNone {
		return "unset"
	}
	return string(s)
}

// ParseStatus accepts a state name; "", "unset" and "null" all mean StatusNone.
func ParseStatus(v string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "unset", "null", "none":
		return StatusNone, true
	}
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	return s, s.Valid()
}

// Stage is the coarse classification lifecycle of an idea.
type Stage string

const (
	StageCaptured  Stage = "captured"
	StageOrganized Stage = "organized"
	StageDistilled Stage = "distilled"
	StageExpressed Stage = "expressed"
)

func (s Stage) rank() int {
	switch s {
	case StageOrganized:
		return 1
	case StageDistilled:
		return 2
	case StageExpressed:
		return 3
	}
	return 0
}

// Priority affects selection order only.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps user input (including the legacy alta/media/baja
// values) onto a Priority. Unknown values become medium.
func NormalizePriority(v string) Priority {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "high", "alta":
		return PriorityHigh
	case "low", "baja":
		return PriorityLow
	}
	return PriorityMedium
}

// Item is a work item ("idea") flowing through the pipeline.
type Item struct {
	ID              int64     `json:"id"`
	Text            string    `json:"text"`
	Priority        Priority  `json:"priority"`
	Stage           Stage     `json:"classification_stage"`
	AIType          string    `json:"ai_type,omitempty"`
	AICategory      string    `json:"ai_category,omitempty"`
	AISummary       string    `json:"ai_summary,omitempty"`
	SuggestedAgent  string    `json:"suggested_agent,omitempty"`
	SuggestedSkills string    `json:"suggested_skills,omitempty"` // JSON array
	RelatedAreaID   *int64    `json:"related_area_id,omitempty"`
	IsProject       bool      `json:"is_project"`
	Status          Status    `json:"execution_status"`
	Output          string    `json:"execution_output,omitempty"`
	Error           string    `json:"execution_error,omitempty"`
	ExecutedAt      time.Time `json:"executed_at,omitempty"`
	ExecutedBy      string    `json:"executed_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Skills decodes SuggestedSkills. Malformed JSON yields nil.
func (it Item) Skills() []string {
	raw := strings.TrimSpace(it.SuggestedSkills)
	if raw == "" || raw == "[]" {
		return nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return nil
	}
	return skills
}

// Title is a short display name: the AI summary when present, otherwise the
// text cut to 80 characters.
func (it Item) Title() string {
	if s := strings.TrimSpace(it.AISummary); s != "" {
		return s
	}
	text := strings.TrimSpace(it.Text)
	if r := []rune(text); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return text
}

// NewItem holds the fields accepted when capturing an idea.
type NewItem struct {
	Text            string
	Priority        string
	Stage           Stage
	AIType          string
	AICategory      string
	AISummary       string
	SuggestedAgent  string
	SuggestedSkills []string
	RelatedAreaID   *int64
}

// Change describes a status transition. Nil Output or Error keep the stored
// value.
type Change struct {
	To     Status
	Output *string
	Error  *string
	By     string
}

// Project is the dashboard record registered for a built item.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	URL           string    `json:"url,omitempty"`
	Icon          string    `json:"icon"`
	Status        string    `json:"status"` // development, completed
	Tech          string    `json:"tech"`
	RelatedAreaID *int64    `json:"related_area_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ContextItem is a keyed knowledge entry used as prompt context and as an
// archive of generated documents.
type ContextItem struct {
	Key         string    `json:"key"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	LastUpdated time.Time `json:"last_updated"`
}

// Event represents something that happened to an item.
type Event struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Agent     string    `json:"agent,omitempty"`
	Type      string    `json:"event_type"` // created, transition, routed, reset, recovered
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats counts items per pipeline bucket.
type Stats struct {
	Pending    int `json:"pending"`
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	Building   int `json:"building"`
	InReview   int `json:"in_review"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Blocked    int `json:"blocked"`
}
