package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
)

const (
	ToolGetCompliancePolicy    = "get_compliance_policy"
	ToolListCompliancePolicies = "list_compliance_policies"
)

type GetCompliancePolicyInput struct {
	PolicyID string `json:"policy_id"`
}

type ListCompliancePoliciesInput struct{}

type ListCompliancePoliciesOutput struct {
	Policies []model.CompliancePolicy `json:"policies"`
}

// NewPolicyTools builds the compliance-policy lookup tools over the given source.
// The reviewer consults them while validating draft answers.
func NewPolicyTools(src policy.Source) []tool.BaseTool {
	get := utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetCompliancePolicy,
			Desc: "Retorna o texto integral de uma política de compliance pelo identificador (ex.: pol-001). Use para verificar se uma resposta respeita uma política específica.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"policy_id": {
					Type:     "string",
					Desc:     "Identificador da política, obtido de list_compliance_policies.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *GetCompliancePolicyInput) (*model.CompliancePolicy, error) {
			p, err := src.Policy(ctx, in.PolicyID)
			if err != nil {
				return nil, err
			}
			return &p, nil
		},
	)

	list := utils.NewTool(
		&schema.ToolInfo{
			Name: ToolListCompliancePolicies,
			Desc: "Lista as políticas de compliance vigentes com título e descrição. Use antes de validar uma resposta para saber quais políticas se aplicam.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		func(ctx context.Context, in *ListCompliancePoliciesInput) (*ListCompliancePoliciesOutput, error) {
			ps, err := src.Policies(ctx)
			if err != nil {
				return nil, err
			}
			return &ListCompliancePoliciesOutput{Policies: ps}, nil
		},
	)

	return []tool.BaseTool{get, list}
}
