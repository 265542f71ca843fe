package gateway

import (
	"fmt"

	"github.com/aretw0/introspection"
)

// GatewayState exposes internal state for observability.
type GatewayState struct {
	LedgerType    string `json:"ledger_type"`
	Codec         string `json:"codec"`
	Retries       int    `json:"retries"`
	RetryInterval string `json:"retry_interval"`
	PageSize      int    `json:"page_size"`
	ReadOnly      bool   `json:"read_only"`
}

// State implements introspection.Introspectable.
func (g *Gateway) State() any {
	ledgerType := fmt.Sprintf("%T", g.ledger)
	if comp, ok := g.ledger.(introspection.Component); ok {
		ledgerType = comp.ComponentType()
	}
	return GatewayState{
		LedgerType:    ledgerType,
		Codec:         g.opts.codec.Name(),
		Retries:       g.opts.retries,
		RetryInterval: g.opts.retryInterval.String(),
		PageSize:      g.opts.pageSize,
		ReadOnly:      g.opts.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (g *Gateway) ComponentType() string {
	return "gateway"
}

var _ introspection.Introspectable = (*Gateway)(nil)
var _ introspection.Component = (*Gateway)(nil)
