package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/focus"
	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/session"
)

// Tier is the permission level a tool requires before it may run
type Tier string

const (
	// TierAuto runs without any approval
	TierAuto Tier = "auto"
	// TierConfirm runs without approval; the caller is expected to have
	// confirmed with its user beforehand
	TierConfirm Tier = "confirm"
	// TierExplicit requires --auto-approve
	TierExplicit Tier = "explicit"
)

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	switch t {
	case TierAuto, TierConfirm, TierExplicit:
		return true
	}
	return false
}

// DryRunParam is accepted by every tool and short-circuits execution
const DryRunParam = "dry_run"

// Descriptor is the static metadata of a tool
type Descriptor struct {
	Name        string
	Tier        Tier
	Description string
	Schema      mcp.ToolInputSchema
}

// NewDescriptor builds a descriptor from an mcp tool definition and adds
// the dry_run flag to its schema.
func NewDescriptor(def mcp.Tool, tier Tier) Descriptor {
	schema := def.InputSchema
	if schema.Type == "" {
		schema.Type = "object"
	}

	props := make(map[string]any, len(schema.Properties)+1)
	for name, prop := range schema.Properties {
		props[name] = prop
	}
	if _, ok := props[DryRunParam]; !ok {
		props[DryRunParam] = map[string]any{
			"type":        "boolean",
			"description": "Preview the action without executing it",
			"default":     false,
		}
	}
	schema.Properties = props

	return Descriptor{
		Name:        def.Name,
		Tier:        tier,
		Description: def.Description,
		Schema:      schema,
	}
}

// Info is the listing form of a descriptor
type Info struct {
	Name          string         `json:"name"`
	ApprovalLevel Tier           `json:"approval_level"`
	Description   string         `json:"description"`
	ParamsSchema  map[string]any `json:"params_schema"`
}

// Info returns the descriptor as emitted by --list-tools
func (d Descriptor) Info() Info {
	required := d.Schema.Required
	if required == nil {
		required = []string{}
	}
	return Info{
		Name:          d.Name,
		ApprovalLevel: d.Tier,
		Description:   d.Description,
		ParamsSchema: map[string]any{
			"type":                 d.Schema.Type,
			"properties":           d.Schema.Properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

// Env is what a tool receives besides its parameters
type Env struct {
	Focus   *focus.Resolver
	Session *session.Session
	Config  *home.Config
}

// Tool is a named operation the dispatcher can run
type Tool interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, params Params, env *Env) (any, error)
}
