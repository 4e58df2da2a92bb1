package retrieval

import (
	"strings"

	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
)

// significanceFloor is the per-mention confidence below which an entity does
// not count toward structured retrieval.
const significanceFloor = 0.8

// hintWords in the query text steer selection toward vector retrieval.
var hintWords = []string{
	"similar", "like", "remember", "recall", "last time", "previously",
	"before", "history of",
}

// Capabilities describes which backends are wired. Strategy selection never
// picks a path whose backend is absent.
type Capabilities struct {
	Structured bool
	Vector     bool
}

// SelectStrategy picks the retrieval path for a query. It is a pure
// function of its inputs: the same extraction, text and capabilities always
// yield the same strategy.
func SelectStrategy(x *llm.Extraction, queryText string, caps Capabilities) knowledge.Strategy {
	if !caps.Vector {
		return knowledge.StrategyStructured
	}
	if !caps.Structured {
		return knowledge.StrategyVector
	}

	if x == nil || x.Intent == llm.IntentUnknown {
		return knowledge.StrategyVector
	}
	if containsHint(queryText) {
		return knowledge.StrategyVector
	}
	if x.Intent.Factual() && hasSignificantEntity(x.Mentions) {
		return knowledge.StrategyStructured
	}
	return knowledge.StrategyCombined
}

func containsHint(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range hintWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hasSignificantEntity(mentions []llm.EntityMention) bool {
	for _, m := range mentions {
		if llm.SignificantEntityKinds[m.Kind] && m.Confidence > significanceFloor {
			return true
		}
	}
	return false
}
