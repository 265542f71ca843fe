package workflow

import "github.com/aretw0/introspection"

// ServiceState exposes the workflow configuration for observability.
type ServiceState struct {
	Stages  []string `json:"stages"`
	Rules   int      `json:"rules"`
	Gateway any      `json:"gateway"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	return ServiceState{
		Stages:  s.table.Stages().Names(),
		Rules:   len(s.table.Rules()),
		Gateway: s.gw.State(),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "workflow"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
