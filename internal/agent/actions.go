package agent

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/apronworks/apron-agent/internal/confirm"
	"github.com/apronworks/apron-agent/internal/llm"
)

// intentKinds maps mutation intents onto confirmable action kinds.
var intentKinds = map[llm.Intent]confirm.Kind{
	llm.IntentStandCreate:       confirm.KindCreateStand,
	llm.IntentStandUpdate:       confirm.KindUpdateStand,
	llm.IntentStandDelete:       confirm.KindDeleteStand,
	llm.IntentTerminalCreate:    confirm.KindCreateTerminal,
	llm.IntentTerminalUpdate:    confirm.KindUpdateTerminal,
	llm.IntentTerminalDelete:    confirm.KindDeleteTerminal,
	llm.IntentMaintenanceCreate: confirm.KindCreateMaintenance,
	llm.IntentMaintenanceUpdate: confirm.KindUpdateMaintenance,
	llm.IntentMaintenanceDelete: confirm.KindDeleteMaintenance,
}

// detectedAction is a mutation the pipeline found in a query. It is recorded
// as a pending action, never executed directly.
type detectedAction struct {
	Kind   confirm.Kind
	Params map[string]string
}

// detectAction looks for a mutation in the extraction first and falls back
// to an action block in the model output. Returns nil when the query is
// purely informational.
func detectAction(x *llm.Extraction, modelOutput string) *detectedAction {
	if x != nil {
		if kind, ok := intentKinds[x.Intent]; ok {
			return &detectedAction{Kind: kind, Params: copyParams(x.Entities)}
		}
	}
	return parseActionBlock(modelOutput)
}

// parseActionBlock scans model output for a JSON object of the form
// {"action": "<kind>", "params": {...}}. Model output is untrusted, so
// anything that does not match the closed kind set is ignored.
func parseActionBlock(output string) *detectedAction {
	if output == "" || !strings.Contains(output, "\"action\"") {
		return nil
	}

	cleaned := stripFences(output)
	action := gjson.Get(cleaned, "action")
	if !action.Exists() {
		// The block may be embedded in surrounding prose.
		if start := strings.Index(cleaned, "{"); start >= 0 {
			cleaned = cleaned[start:]
			action = gjson.Get(cleaned, "action")
		}
	}
	if !action.Exists() {
		return nil
	}

	kind := confirm.Kind(action.String())
	if !confirm.ValidKind(kind) {
		return nil
	}

	params := make(map[string]string)
	gjson.Get(cleaned, "params").ForEach(func(key, value gjson.Result) bool {
		params[key.String()] = value.String()
		return true
	})

	return &detectedAction{Kind: kind, Params: params}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func copyParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
