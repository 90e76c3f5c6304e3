package tools

import (
	"github.com/prismon/vps-agent/pkg/logger"
	"github.com/sirupsen/logrus"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("tools")
}

// Registry maps tool names to implementations in registration order.
// It is built once at startup and read-only afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. The descriptor must be complete and the name unused.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return &InvalidDescriptorError{Reason: "tool is nil"}
	}

	desc := tool.Descriptor()
	if err := checkDescriptor(desc); err != nil {
		return err
	}

	if _, exists := r.tools[desc.Name]; exists {
		return &DuplicateToolError{Name: desc.Name}
	}

	r.tools[desc.Name] = tool
	r.order = append(r.order, desc.Name)

	log.WithFields(logrus.Fields{
		"tool": desc.Name,
		"tier": desc.Tier,
	}).Debug("Registered tool")

	return nil
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all descriptors in registration order
func (r *Registry) List() []Descriptor {
	descs := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.tools[name].Descriptor())
	}
	return descs
}

// Names returns all tool names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.order)
}

func checkDescriptor(d Descriptor) error {
	switch {
	case d.Name == "":
		return &InvalidDescriptorError{Reason: "name is empty"}
	case !d.Tier.Valid():
		return &InvalidDescriptorError{Name: d.Name, Reason: "unknown approval tier " + string(d.Tier)}
	case d.Description == "":
		return &InvalidDescriptorError{Name: d.Name, Reason: "description is empty"}
	case d.Schema.Properties == nil:
		return &InvalidDescriptorError{Name: d.Name, Reason: "parameter schema is missing"}
	}
	if _, ok := d.Schema.Properties[DryRunParam]; !ok {
		return &InvalidDescriptorError{Name: d.Name, Reason: "parameter schema does not accept dry_run"}
	}
	return nil
}
