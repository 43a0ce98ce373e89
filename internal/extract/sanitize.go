package extract

import (
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^\w.\-]`)

// SanitizeName makes a generated file name safe to write under a project
// directory. Traversal segments and hidden segments are dropped, other
// characters outside [A-Za-z0-9_.-] become underscores, and at most one
// directory level is kept (the innermost). A hidden file is rejected
// whatever its directory. It returns "" when nothing usable is left.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")

	segs := strings.Split(name, "/")
	if last := strings.TrimSpace(segs[len(segs)-1]); strings.HasPrefix(last, ".") && last != "." && last != ".." {
		return ""
	}

	var parts []string
	for _, p := range segs {
		p = strings.TrimSpace(p)
		if p == "" || p == "." || p == ".." || strings.HasPrefix(p, ".") {
			continue
		}
		parts = append(parts, unsafeChars.ReplaceAllString(p, "_"))
	}
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/")
}

// Sanitize applies SanitizeName to every file. Files whose name sanitizes to
// nothing are dropped and reported; a later file with the same sanitized
// name replaces an earlier one.
func Sanitize(files []File) (kept []File, dropped []string) {
	index := map[string]int{}
	for _, f := range files {
		safe := SanitizeName(f.Name)
		if safe == "" {
			dropped = append(dropped, f.Name)
			continue
		}
		if i, ok := index[safe]; ok {
			kept[i].Content = f.Content
			continue
		}
		index[safe] = len(kept)
		kept = append(kept, File{Name: safe, Content: f.Content})
	}
	return kept, dropped
}
