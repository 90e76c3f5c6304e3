package tools

import "math"

// Params are validated tool parameters as decoded from JSON
type Params map[string]any

// String returns the named string parameter, or "" when absent
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Bool returns the named boolean parameter, or false when absent
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Float returns the named number parameter, or 0 when absent
func (p Params) Float(name string) float64 {
	n, _ := p[name].(float64)
	return n
}

// Int returns the named number parameter truncated to an int
func (p Params) Int(name string) int {
	return int(math.Trunc(p.Float(name)))
}

// Has reports whether the parameter was supplied or defaulted to a non-null value
func (p Params) Has(name string) bool {
	v, ok := p[name]
	return ok && v != nil
}

// DryRun reports whether the caller asked for a preview
func (p Params) DryRun() bool {
	return p.Bool(DryRunParam)
}
