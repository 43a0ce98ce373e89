package agent

import (
	"strings"
)

// ParsedReview represents a review verdict extracted from reviewer output.
type ParsedReview struct {
	Approved bool
	Comments []string
}

var (
	verdictTokens  = []string{"VERDICT: APPROVED", "VEREDICTO: APROBADO"}
	approvedWords  = []string{"APPROVED", "APROBADO"}
	commentHeaders = []string{"COMMENTS:", "COMENTARIOS:", "ISSUES:", "PROBLEMAS:"}
)

// ParseReview extracts the verdict and comments from reviewer output.
// Expected format:
//
//	VERDICT: APPROVED
//	COMMENTS:
//	- file:line: description
//
// The response is approved when a verdict token appears anywhere
// (case-insensitive) or when its first line ends with the approval word.
// A negated first line ("NOT APPROVED", "NO APROBADO", "UNAPPROVED") does not
// count. Anything else, including empty or ambiguous output, is a rejection.
func ParseReview(output string) ParsedReview {
	result := ParsedReview{}
	upper := strings.ToUpper(output)

	for _, tok := range verdictTokens {
		if strings.Contains(upper, tok) {
			result.Approved = true
		}
	}

	lines := strings.Split(output, "\n")
	if approvedLine(strings.ToUpper(strings.TrimSpace(lines[0]))) {
		result.Approved = true
	}

	for i, line := range lines {
		if !hasAnyPrefix(strings.ToUpper(strings.TrimSpace(line)), commentHeaders) {
			continue
		}
		// Collect all following lines that start with - or *
		for j := i + 1; j < len(lines); j++ {
			cl := strings.TrimSpace(lines[j])
			if cl == "" {
				continue
			}
			if strings.HasPrefix(cl, "-") || strings.HasPrefix(cl, "*") {
				if comment := strings.TrimSpace(cl[1:]); comment != "" {
					result.Comments = append(result.Comments, comment)
				}
			} else if strings.HasSuffix(cl, ":") {
				break
			}
		}
		break
	}

	return result
}

// approvedLine reports whether an upper-cased line ends with a bare
// approval word.
func approvedLine(line string) bool {
	for _, w := range approvedWords {
		rest, ok := strings.CutSuffix(line, w)
		if !ok {
			continue
		}
		if rest != "" {
			if last := rest[len(rest)-1]; last >= 'A' && last <= 'Z' {
				continue
			}
		}
		rest = strings.TrimRight(rest, " \t")
		if strings.HasSuffix(rest, " NOT") || strings.HasSuffix(rest, " NO") || rest == "NOT" || rest == "NO" {
			continue
		}
		return true
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
