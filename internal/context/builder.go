// Package context builds the prompts each stage sends to a text-generation
// backend, from the item, its history and the stored knowledge base.
package context

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/imkarma/ideaflow/internal/extract"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/skills"
	"github.com/imkarma/ideaflow/internal/store"
)

// Review inputs are cut to these sizes before being sent.
const (
	MaxCodeReviewChars = 6000
	MaxDocReviewChars  = 8000
	MaxContextItems    = 20

	truncatedSuffix = "\n\n[... TRUNCATED for review ...]"
)

// Section markers written into an item's output by the stage workers.
const (
	AgentLabel          = "**Agent:** "
	EngineLabel         = "**Engine:** "
	GeneratedCodeHeader = "### Generated Code"

	sectionBreak = "\n---\n### "
)

// LatestCode returns the code of the most recent generation attempt, cut
// before any report appended after it.
func LatestCode(output string) string {
	return extract.Section(output, GeneratedCodeHeader, sectionBreak)
}

// LatestAttempt returns the output from the most recent generation attempt
// on, including its build report.
func LatestAttempt(output string) string {
	if i := strings.LastIndex(output, EngineLabel); i >= 0 {
		return output[i:]
	}
	return output
}

// LatestDocument returns the most recent consulting document in output,
// from its agent header on.
func LatestDocument(output string) string {
	if i := strings.LastIndex(output, AgentLabel); i >= 0 {
		return output[i:]
	}
	return output
}

// Default stage instructions, used when the SOP file is missing.
const (
	defaultGenerateSOP = `You are a senior Python developer. Write complete, runnable code for the task.
Keep dependencies to a minimum and prefer the standard library.`

	defaultCodeReviewSOP = `You are a senior Python code reviewer.
Evaluate: functionality, errors, security, quality.`

	defaultDocReviewSOP = `You are a quality director reviewing a consulting document.
Evaluate: completeness, professionalism, specificity, structure, next steps.`
)

// Prompt is a system instruction plus the user message.
type Prompt struct {
	System string
	User   string
}

// Text joins both halves for backends without a system channel.
func (p Prompt) Text() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n---\n\n" + p.User
}

// Source is the read side of the store the builder needs.
type Source interface {
	RecentContextItems(limit int) ([]store.ContextItem, error)
	GetEvents(itemID int64) ([]store.Event, error)
}

// Builder constructs stage prompts.
type Builder struct {
	store  Source
	skills *skills.Loader
}

// New creates a prompt builder.
func New(s Source, l *skills.Loader) *Builder {
	return &Builder{store: s, skills: l}
}

// IsCorrection reports whether an item's error history carries a code review
// or build rejection, which switches generation into correction mode.
func IsCorrection(history string) bool {
	return pipeline.CodeReviewRejected.In(history) || pipeline.BuildRejected.In(history)
}

// Generate builds the code generation prompt. In correction mode it carries
// the rejection history and the previous attempt.
func (b *Builder) Generate(it *store.Item) Prompt {
	sop := b.skills.LoadOr(skills.GenerateCode, defaultGenerateSOP)

	var sb strings.Builder
	if IsCorrection(it.Error) {
		sb.WriteString("CORRECTION MODE: your previous code was REJECTED. Fix it.\n\n")
		fmt.Fprintf(&sb, "ORIGINAL REQUIREMENT:\n%s\n\n", it.Text)
		fmt.Fprintf(&sb, "ERROR OR CRITIQUE:\n%s\n\n", it.Error)
		if prev := strings.TrimSpace(LatestCode(it.Output)); prev != "" {
			fmt.Fprintf(&sb, "PREVIOUS CODE:\n%s\n\n", truncate(prev, MaxCodeReviewChars, "\n[... truncated ...]"))
		}
		sb.WriteString("Generate the complete corrected code.\n\n")
	} else {
		fmt.Fprintf(&sb, "TASK:\n%s\n\n", it.Text)
		if it.AISummary != "" {
			fmt.Fprintf(&sb, "SUMMARY: %s\n\n", it.AISummary)
		}
	}
	sb.WriteString(fileFormat)

	return Prompt{System: sop, User: sb.String()}
}

const fileFormat = `## Output Format
Write every file like this:
