package build

import (
	"sort"
	"strings"

	"github.com/imkarma/ideaflow/internal/extract"
)

// knownPackages maps an import name to the pip package that provides it.
// Imports not listed here are assumed to be standard library or local.
var knownPackages = map[string]string{
	"flask":        "flask",
	"fastapi":      "fastapi",
	"uvicorn":      "uvicorn",
	"requests":     "requests",
	"pandas":       "pandas",
	"numpy":        "numpy",
	"sqlalchemy":   "sqlalchemy",
	"pydantic":     "pydantic",
	"click":        "click",
	"rich":         "rich",
	"httpx":        "httpx",
	"aiohttp":      "aiohttp",
	"pytest":       "pytest",
	"redis":        "redis",
	"celery":       "celery",
	"boto3":        "boto3",
	"pillow":       "Pillow",
	"PIL":          "Pillow",
	"sklearn":      "scikit-learn",
	"cv2":          "opencv-python",
	"dotenv":       "python-dotenv",
	"yaml":         "pyyaml",
	"bs4":          "beautifulsoup4",
	"jinja2":       "jinja2",
	"jwt":          "pyjwt",
	"cryptography": "cryptography",
	"matplotlib":   "matplotlib",
	"seaborn":      "seaborn",
	"scipy":        "scipy",
	"django":       "django",
	"tornado":      "tornado",
	"gunicorn":     "gunicorn",
	"streamlit":    "streamlit",
}

// Requirements scans the .py files for imports of known third-party
// packages and returns the sorted, de-duplicated pip names.
func Requirements(files []extract.File) []string {
	found := map[string]bool{}
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".py") {
			continue
		}
		for _, line := range strings.Split(f.Content, "\n") {
			if pkg, ok := knownPackages[importedModule(line)]; ok {
				found[pkg] = true
			}
		}
	}

	deps := make([]string, 0, len(found))
	for pkg := range found {
		deps = append(deps, pkg)
	}
	sort.Strings(deps)
	return deps
}

// ParseRequirements reads the package names out of a requirements.txt body,
// skipping blanks and comments.
func ParseRequirements(content string) []string {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		deps = append(deps, line)
	}
	return deps
}

// importedModule returns the top-level module of an import statement, or
// "" when the line is not one.
func importedModule(line string) string {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	switch {
	case fields[0] == "import":
	case fields[0] == "from" && strings.Contains(line, " import "):
	default:
		return ""
	}
	mod := strings.TrimSuffix(fields[1], ",")
	return strings.SplitN(mod, ".", 2)[0]
}
