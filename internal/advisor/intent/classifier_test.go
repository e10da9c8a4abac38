package intent_test

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/intent"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
)

func TestClassify(t *testing.T) {
	c := intent.NewClassifier()

	cases := []struct {
		name    string
		message string
		want    model.Intent
	}{
		{"profile query", "qual é o meu perfil de investidor?", model.IntentSimpleProfileQuery},
		{"portfolio query", "como está minha carteira?", model.IntentPortfolioQuery},
		{"adequacy", "minha carteira está adequada ao meu perfil?", model.IntentAdequacyAnalysis},
		{"diversification", "minha carteira está bem diversificada?", model.IntentDiversification},
		{"rebalance", "o que você recomenda ajustar na carteira?", model.IntentRebalance},
		{"projection", "quanto terei daqui a 10 anos?", model.IntentProjection},
		{"opportunities", "onde investir agora?", model.IntentOpportunitySearch},
		{"no intent", "bom dia, tudo bem?", model.IntentNone},
		{"typo in carteira", "como está minha carteria?", model.IntentPortfolioQuery},
		{"typo in perfil", "qual meu perfiu de investidor?", model.IntentSimpleProfileQuery},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.message, nil))
		})
	}
}

func TestClassify_SpecificIntentWinsOverPortfolioMention(t *testing.T) {
	c := intent.NewClassifier()
	// "carteira" appears, but the message asks for diversification.
	got := c.Classify("minha carteira está muito concentrada?", nil)
	assert.Equal(t, model.IntentDiversification, got)
}

func TestClassify_ConfirmationCarriesPriorIntent(t *testing.T) {
	c := intent.NewClassifier()

	history := []*schema.Message{
		schema.UserMessage("minha carteira está bem diversificada?"),
		schema.AssistantMessage("Posso analisar a diversificação da sua carteira. Confirma?", nil),
	}

	t.Run("bare confirmation inherits intent", func(t *testing.T) {
		assert.Equal(t, model.IntentDiversification, c.Classify("sim", history))
		assert.Equal(t, model.IntentDiversification, c.Classify("pode ser", history))
	})

	t.Run("confirmation without history is none", func(t *testing.T) {
		assert.Equal(t, model.IntentNone, c.Classify("ok", nil))
	})

	t.Run("skips chained confirmations in history", func(t *testing.T) {
		chained := append([]*schema.Message{}, history...)
		chained = append(chained,
			schema.UserMessage("ok"),
			schema.AssistantMessage("Certo, algo mais?", nil),
		)
		assert.Equal(t, model.IntentDiversification, c.Classify("sim", chained))
	})

	t.Run("new substantive message overrides history", func(t *testing.T) {
		assert.Equal(t, model.IntentProjection, c.Classify("quanto terei daqui a 5 anos?", history))
	})
}
