package skills

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultAgent handles document items that carry no specialist.
const DefaultAgent = "gtd"

// Agent is a document specialist and the SOPs it works from.
type Agent struct {
	Key    string
	Name   string
	Skills []string
}

var agents = map[string]Agent{
	"staffing": {
		Key:    "staffing",
		Name:   "Staffing Agent (staffing and shift planning)",
		Skills: []string{"customizable/create-staffing-plan.md", "core/model-staffing-requirements.md"},
	},
	"training": {
		Key:    "training",
		Name:   "Training Agent (training plans and curricula)",
		Skills: []string{"customizable/create-training-plan.md"},
	},
	"finance": {
		Key:    "finance",
		Name:   "Finance Agent (OPEX budget analysis)",
		Skills: []string{"core/model-opex-budget.md"},
	},
	"compliance": {
		Key:    "compliance",
		Name:   "Compliance Agent (regulatory compliance audits)",
		Skills: []string{"core/audit-compliance-readiness.md"},
	},
	"gtd": {
		Key:  "gtd",
		Name: "GTD Agent (productivity and organization)",
		Skills: []string{
			"core/classify-idea.md",
			"core/decompose-project.md",
			"core/identify-next-action.md",
			"core/weekly-review.md",
		},
	},
}

// Lookup returns a known specialist.
func Lookup(key string) (Agent, bool) {
	a, ok := agents[key]
	return a, ok
}

// IsAgent reports whether key names a known specialist.
func IsAgent(key string) bool {
	_, ok := agents[key]
	return ok
}

// AgentKeys lists the known specialists in sorted order.
func AgentKeys() []string {
	keys := make([]string, 0, len(agents))
	for k := range agents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ForAgent resolves the specialist for an item and the skill paths it should
// load: the specialist's own list, or else the item's suggested skills
// (a JSON array of paths). Unknown specialists get a generic name.
func ForAgent(key, suggested string) (Agent, []string) {
	if key == "" {
		key = DefaultAgent
	}
	if a, ok := agents[key]; ok {
		return a, a.Skills
	}

	var paths []string
	if s := strings.TrimSpace(suggested); s != "" {
		if err := json.Unmarshal([]byte(s), &paths); err != nil {
			paths = nil
		}
	}
	return Agent{Key: key, Name: "Agent " + key, Skills: paths}, paths
}
