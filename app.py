
from flask import Flask
app = Flask(__name__)

=== ENDFILE ===

===FILE:   templates/index.html   ===
<h1>Roster</h1>
===ENDFILE===
`

const labeledTwoFiles = "Here is the project.\n\n" +
	"**File: app.py**\n```python\nfrom flask import Flask\napp = Flask(__name__)\n```\n\n" +
	"**File:  templates/index.html **\n\n```html\n<h1>Roster</h1>\n```\n"

func TestFiles_RawBlocks(t *testing.T) {
	files := Files(rawTwoFiles)
	require.Len(t, files, 2)
	assert.Equal(t, File{Name: "app.py", Content: "from flask import Flask\napp = Flask(__name__)"}, files[0])
	assert.Equal(t, File{Name: "templates/index.html", Content: "<h1>Roster</h1>"}, files[1])
}

func TestFiles_FormatEquivalence(t *testing.T) {
	assert.Equal(t, Files(rawTwoFiles), Files(labeledTwoFiles))
}

func TestFiles_SpanishLabel(t *testing.T) {
	out := "**Archivo: main.py**\n```python\nprint('hola')\n```"
	assert.Equal(t, []File{{Name: "main.py", Content: "print('hola')"}}, Files(out))
}

func TestFiles_LabeledWinsOverRaw(t *testing.T) {
	out := labeledTwoFiles + "\n=== FILE: other.py ===\nx = 1\n=== ENDFILE ===\n"
	files := Files(out)
	require.Len(t, files, 2)
	assert.Equal(t, "app.py", files[0].Name)
}

func TestFiles_RawWinsOverGenericBlock(t *testing.T) {
	out := "```python\nignored = True\n```\n\n=== FILE: tool.py ===\nrun()\n=== ENDFILE ==="
	assert.Equal(t, []File{{Name: "tool.py", Content: "run()"}}, Files(out))
}

func TestFiles_RawBlockWithInnerFence(t *testing.T) {
	out := "=== FILE: main.py ===\n```python\nprint(1)\n```\n=== ENDFILE ==="
	assert.Equal(t, []File{{Name: "main.py", Content: "print(1)"}}, Files(out))
}

func TestFiles_SingleGenericBlock(t *testing.T) {
	out := "Sure! Here you go:\n\n```python\nprint('hello')\n```\n\nAnd a second one:\n```\nunused\n```"
	assert.Equal(t, []File{{Name: DefaultEntrypoint, Content: "print('hello')"}}, Files(out))
}

func TestFiles_Nothing(t *testing.T) {
	assert.Empty(t, Files("I could not write the code, sorry."))
	assert.Empty(t, Files(""))
}

func TestFormat_ReadsBack(t *testing.T) {
	files := []File{
		{Name: "main.py", Content: "import app\napp.run()"},
		{Name: "static/site.css", Content: "body { margin: 0 }"},
	}
	out := Format(files)
	assert.True(t, strings.HasPrefix(out, "**File: main.py**\n```python\n"))
	assert.Contains(t, out, "```css\n")
	assert.Equal(t, files, Files(out))
}

func TestSection(t *testing.T) {
	output := "### Generated Code\n\nold\n\n---\n### Build Report\nok\n\n### Generated Code\n\nnew code\n\n---\n### Build Report\nfresh"
	assert.Equal(t, "\n\nnew code\n\n", Section(output, "### Generated Code", "---\n### Build Report"))
	assert.Equal(t, "plain", Section("plain", "### Generated Code"))
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd":      "etc/passwd",
		`..\..\evil.py`:         "evil.py",
		".bashrc":               "",
		"templates/index.html":  "templates/index.html",
		"  main.py ":            "main.py",
		"a/b/c/deep.py":         "c/deep.py",
		"my app (v2).py":        "my_app__v2_.py",
		"src/.git/config":       "src/config",
		"templates/.env":        "",
		"a/../.hidden":          "",
		"./static/app.js":       "static/app.js",
		"..":                    "",
		"/abs/path/to/file.txt": "to/file.txt",
	}
	for in, want := range tests {
		got := SanitizeName(in)
		assert.Equal(t, want, got, "SanitizeName(%q)", in)
		for _, seg := range strings.Split(got, "/") {
			assert.NotEqual(t, "..", seg)
		}
	}
}

func TestSanitize_DropsAndDedupes(t *testing.T) {
	kept, dropped := Sanitize([]File{
		{Name: "main.py", Content: "v1"},
		{Name: ".env", Content: "SECRET=1"},
		{Name: "./main.py", Content: "v2"},
		{Name: "lib/util.py", Content: "u"},
	})
	assert.Equal(t, []File{{Name: "main.py", Content: "v2"}, {Name: "lib/util.py", Content: "u"}}, kept)
	assert.Equal(t, []string{".env"}, dropped)
}
