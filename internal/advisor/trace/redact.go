package trace

import (
	"unicode/utf8"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
)

// truncateBudget is the per-payload byte budget at the truncated detail level.
const truncateBudget = 2048

const truncateSuffix = "…[truncated]"

// redactor applies the configured detail level to raw prompt/response and
// tool payloads before they reach the store. It is a write-path decorator so
// per-call truncation logic does not leak into the recording sites.
type redactor struct {
	level model.DetailLevel
}

// payload redacts a raw payload according to the detail level. Truncation is
// deterministic: byte budget, cut back to a rune boundary, fixed suffix.
func (r redactor) payload(s string) string {
	switch r.level {
	case model.DetailOmitted:
		return ""
	case model.DetailTruncated:
		return truncate(s, truncateBudget)
	default:
		return s
	}
}

func truncate(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncateSuffix
}
