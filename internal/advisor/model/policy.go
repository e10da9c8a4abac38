package model

// RoutingPolicy carries the business rules the router consults on every turn.
// It is fetched from the external policy source; when the source is unavailable
// the hardcoded default below applies so a missing policy never fails a turn.
type RoutingPolicy struct {
	RedirectRules    []string        `json:"redirect_rules"`
	TopicPermissions map[string]bool `json:"topic_permissions"`
}

// CompliancePolicy is a single policy document consulted during the review pass.
type CompliancePolicy struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// DefaultRoutingPolicy returns the built-in policy set used when the policy
// source is unreachable or returns a non-2xx response.
func DefaultRoutingPolicy() RoutingPolicy {
	return RoutingPolicy{
		RedirectRules: []string{
			"Solicitação de valores acima de R$ 100.000",
			"Pedido de atendimento humano ou gerente de conta",
			"Reclamação formal ou ameaça de acionamento de órgão regulador",
		},
		TopicPermissions: map[string]bool{
			"investimentos":    true,
			"previdencia":      true,
			"criptomoedas":     false,
			"day_trade":        false,
			"paraisos_fiscais": false,
		},
	}
}

// ComplianceOutcome is the result of the compliance review pass.
type ComplianceOutcome struct {
	ValidatedText     string   `json:"validated_text"`
	PoliciesConsulted []string `json:"policies_consulted"`
	Reviewed          bool     `json:"reviewed"`
}
