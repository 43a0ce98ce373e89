package pipeline

import "strings"

// Marker is a literal tag written into an item's error text. Counting its
// occurrences is the retry counter, so the tokens must never change.
type Marker struct {
	Token   string
	Aliases []string // legacy spellings counted as the same marker
}

var (
	CodeReviewRejected = Marker{Token: "QA REJECTED", Aliases: []string{"QA RECHAZADO"}}
	BuildRejected      = Marker{Token: "BUILD REJECTED", Aliases: []string{"BUILDER RECHAZADO"}}
	DocReviewRejected  = Marker{Token: "REVIEW REJECTED", Aliases: []string{"REVIEWER RECHAZADO"}}
	Retry              = Marker{Token: "[RETRY]"}
)

// Budgets.
const (
	MaxCorrections   = 3 // code review rejections before generation blocks
	MaxBuildFailures = 3
	MaxRequeues      = 2 // router re-queues of failed items
)

// Count returns how many times m appears in text.
func (m Marker) Count(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, m.Token)
	for _, a := range m.Aliases {
		n += strings.Count(text, a)
	}
	return n
}

// In reports whether text carries m at least once.
func (m Marker) In(text string) bool { return m.Count(text) > 0 }

// Tag formats a rejection entry: the marker followed by the detail.
func (m Marker) Tag(detail string) string {
	return m.Token + ":\n" + strings.TrimSpace(detail)
}

// AppendError appends entry to the existing error history, keeping prior
// entries as a prefix.
func AppendError(history, entry string) string {
	history = strings.TrimRight(history, "\n ")
	if history == "" {
		return entry
	}
	return history + "\n\n" + entry
}
