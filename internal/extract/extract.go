// Package extract pulls generated files out of free-form model output.
//
// Three formats are recognized, in priority order, and the first one that
// yields any file wins:
//
//  1. a bold label line followed by a fenced block:
//     **File: app.py**
//     ```python
//     ...
//     ```
//  2. delimited raw blocks: === FILE: app.py === ... === ENDFILE ===
//  3. the first fenced block of any kind, saved as main.py
package extract

import (
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultEntrypoint names the file produced from a lone code block.
const DefaultEntrypoint = "main.py"

// File is one generated artifact.
type File struct {
	Name    string
	Content string
}

var (
	labelRe = regexp.MustCompile(`^\*\*(?:File|Archivo|Filename):\s*(.*?)\*\*\s*$`)
	rawRe   = regexp.MustCompile(`(?is)===\s*FILE:\s*(.*?)\s*===(.*?)===\s*ENDFILE\s*===`)
)

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

func parser() goldmark.Markdown {
	mdOnce.Do(func() { md = goldmark.New() })
	return md
}

// Files returns the artifacts found in output. Names and contents are
// trimmed; names are not sanitized.
func Files(output string) []File {
	blocks := fencedBlocks(output)

	var labeled []File
	for _, b := range blocks {
		if b.label != "" {
			labeled = append(labeled, File{Name: b.label, Content: b.content})
		}
	}
	if len(labeled) > 0 {
		return labeled
	}

	if raw := rawBlocks(output); len(raw) > 0 {
		return raw
	}

	if len(blocks) > 0 {
		return []File{{Name: DefaultEntrypoint, Content: blocks[0].content}}
	}
	return nil
}

type fenced struct {
	label    string
	language string
	content  string
}

// fencedBlocks walks the markdown AST and returns every fenced code block
// with the file label of the paragraph right before it, if any.
func fencedBlocks(output string) []fenced {
	source := []byte(output)
	doc := parser().Parser().Parse(text.NewReader(source))

	var blocks []fenced
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindFencedCodeBlock {
			return ast.WalkContinue, nil
		}
		fcb := n.(*ast.FencedCodeBlock)

		var code strings.Builder
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(source))
		}

		blocks = append(blocks, fenced{
			label:    labelBefore(fcb, source),
			language: string(fcb.Language(source)),
			content:  strings.TrimSpace(code.String()),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// labelBefore returns the file name when the previous sibling is a
// paragraph whose last line is a bold file label.
func labelBefore(n ast.Node, source []byte) string {
	prev := n.PreviousSibling()
	if prev == nil || prev.Kind() != ast.KindParagraph {
		return ""
	}
	lines := prev.Lines()
	if lines.Len() == 0 {
		return ""
	}
	seg := lines.At(lines.Len() - 1)
	last := strings.TrimSpace(string(seg.Value(source)))
	m := labelRe.FindStringSubmatch(last)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), "`")
}

func rawBlocks(output string) []File {
	var files []File
	for _, m := range rawRe.FindAllStringSubmatch(output, -1) {
		files = append(files, File{
			Name:    strings.TrimSpace(m[1]),
			Content: unwrapFence(strings.TrimSpace(m[2])),
		})
	}
	return files
}

// unwrapFence strips a code fence wrapped around a whole raw block.
func unwrapFence(content string) string {
	if !strings.HasPrefix(content, "```") || !strings.HasSuffix(content, "```") || len(content) < 6 {
		return content
	}
	nl := strings.Index(content, "\n")
	if nl < 0 {
		return content
	}
	return strings.TrimSpace(content[nl+1 : len(content)-3])
}

// Format renders files in the labeled markdown format that Files reads
// first.
func Format(files []File) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, "**File: "+f.Name+"**\n```"+Language(f.Name)+"\n"+f.Content+"\n```")
	}
	return strings.Join(parts, "\n\n")
}

// Language maps a file name to a fence language tag.
func Language(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".py":
		return "python"
	case ".html", ".htm":
		return "html"
	case ".js":
		return "javascript"
	case ".css":
		return "css"
	case ".json":
		return "json"
	case ".sql":
		return "sql"
	case ".sh":
		return "bash"
	case ".yaml", ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	}
	return ""
}

// Section returns the text after the last occurrence of header, cut at the
// first of stops that follows. Without header the whole text is the section.
func Section(output, header string, stops ...string) string {
	if i := strings.LastIndex(output, header); i >= 0 {
		output = output[i+len(header):]
	}
	for _, stop := range stops {
		if j := strings.Index(output, stop); j >= 0 {
			output = output[:j]
		}
	}
	return output
}
