package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// routePolicy decides whether a verified caller may reach a path. Admin path patterns use the
// same Ant-style syntax as public paths and are matched with glob.match.
const routePolicy = `package bookfair.gateway

default allow := false

admin_path if {
	some pattern in input.admin_paths
	glob.match(pattern, ["/"], input.path)
}

allow if {
	not admin_path
}

allow if {
	admin_path
	input.role == "ADMIN"
}
`

const routePolicyQuery = "data.bookfair.gateway.allow"

// RoutePolicy evaluates the route authorization policy with an in-process OPA Rego engine.
type RoutePolicy struct {
	query      rego.PreparedEvalQuery
	adminPaths []any
}

// NewRoutePolicy compiles the route policy for adminPaths.
func NewRoutePolicy(ctx context.Context, adminPaths []string) (*RoutePolicy, error) {
	q, err := rego.New(
		rego.Query(routePolicyQuery),
		rego.Module("gateway.rego", routePolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway: compile route policy: %w", err)
	}
	expanded := expandPatterns(adminPaths)
	paths := make([]any, len(expanded))
	for i, p := range expanded {
		paths[i] = p
	}
	return &RoutePolicy{query: q, adminPaths: paths}, nil
}

// Allow reports whether a caller with role may access path.
func (p *RoutePolicy) Allow(ctx context.Context, path, role string) (bool, error) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(map[string]any{
		"path":        path,
		"role":        role,
		"admin_paths": p.adminPaths,
	}))
	if err != nil {
		return false, fmt.Errorf("gateway: eval route policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, errors.New("gateway: route policy returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, errors.New("gateway: route policy returned a non-boolean result")
	}
	return allowed, nil
}

// HealthCheck evaluates the compiled policy once. It does not depend on any external service.
func (p *RoutePolicy) HealthCheck(ctx context.Context) error {
	_, err := p.Allow(ctx, "/healthz", "")
	return err
}
