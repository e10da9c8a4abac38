package intent

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Classifier maps the latest user message to a discrete intent tag using
// ordered lexical rules. It is deterministic and never calls the model.
type Classifier struct {
	groups []keywordGroup
}

type keywordGroup struct {
	intent   model.Intent
	keywords []string
}

// typoFixes patches the misspellings that show up often enough in production
// logs to be worth normalising before keyword matching.
var typoFixes = strings.NewReplacer(
	"carteria", "carteira",
	"cateira", "carteira",
	"invistimento", "investimento",
	"investimeto", "investimento",
	"perfiu", "perfil",
	"diversificasao", "diversificação",
	"rebalancia", "rebalancea",
)

// confirmations are short acknowledgements that carry no intent of their own.
var confirmations = map[string]bool{
	"ok":        true,
	"okay":      true,
	"sim":       true,
	"yes":       true,
	"sure":      true,
	"claro":     true,
	"certo":     true,
	"isso":      true,
	"pode ser":  true,
	"por favor": true,
	"beleza":    true,
	"perfeito":  true,
}

func NewClassifier() *Classifier {
	return &Classifier{
		// First match wins. Recommendation and analysis keywords come before
		// the generic portfolio group so a broad "carteira" mention does not
		// shadow the more specific intents.
		groups: []keywordGroup{
			{model.IntentRebalance, []string{
				"rebalance", "rebalancea", "realocar", "realocação", "recomenda", "recomendação", "o que devo ajustar",
			}},
			{model.IntentAdequacyAnalysis, []string{
				"adequad", "adequação", "compatível com meu perfil", "condiz com meu perfil", "de acordo com meu perfil",
			}},
			{model.IntentDiversification, []string{
				"diversific", "concentrad", "concentração",
			}},
			{model.IntentProjection, []string{
				"projeção", "projetar", "quanto terei", "quanto vou ter", "daqui a", "render até", "valor futuro",
			}},
			{model.IntentOpportunitySearch, []string{
				"oportunidade", "onde investir", "sugestão", "sugestões", "o que comprar", "novos investimentos",
			}},
			{model.IntentSimpleProfileQuery, []string{
				"meu perfil", "perfil de investidor", "perfil de risco", "suitability",
			}},
			{model.IntentPortfolioQuery, []string{
				"carteira", "portfólio", "portfolio", "minhas posições", "meus investimentos", "quanto tenho",
			}},
		},
	}
}

// Classify derives the intent of the latest user message. When the message is
// a bare confirmation and history exists, the most recent non-confirmation
// user message is classified instead, so multi-turn confirmations keep the
// prior intent.
func (c *Classifier) Classify(message string, history []*schema.Message) model.Intent {
	text := normalize(message)

	if confirmations[text] {
		if prior := lastSubstantiveUserMessage(history); prior != "" {
			logx.Debug().Str("prior", prior).Msg("confirmation message, classifying prior user message")
			text = normalize(prior)
		}
	}

	for _, g := range c.groups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				return g.intent
			}
		}
	}
	return model.IntentNone
}

func normalize(s string) string {
	return typoFixes.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func lastSubstantiveUserMessage(history []*schema.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil || m.Role != schema.User {
			continue
		}
		if confirmations[normalize(m.Content)] {
			continue
		}
		return m.Content
	}
	return ""
}
