package params

import "sync"

// Parameter is a user-defined configuration field exposed through the
// portal. The value only changes through SetValue, which rejects anything
// the parameter's validator refuses.
type Parameter struct {
	id         string
	label      string
	typ        Type
	attributes string
	validator  Validator

	mu    sync.RWMutex
	value string
}

// Option customizes a Parameter at construction.
type Option func(*Parameter)

// WithAttributes sets free-form HTML attributes (or <option> markup for
// select parameters) passed through to the portal page.
func WithAttributes(attrs string) Option {
	return func(p *Parameter) { p.attributes = attrs }
}

// WithValidator replaces the built-in type rule.
func WithValidator(v Validator) Option {
	return func(p *Parameter) { p.validator = v }
}

// New creates a parameter. The default value is stored as given.
func New(id, label, defaultValue string, typ Type, opts ...Option) *Parameter {
	p := &Parameter{
		id:    id,
		label: label,
		typ:   typ,
		value: defaultValue,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parameter) ID() string         { return p.id }
func (p *Parameter) Label() string      { return p.label }
func (p *Parameter) Type() Type         { return p.typ }
func (p *Parameter) Attributes() string { return p.attributes }

// Value returns the current value.
func (p *Parameter) Value() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// SetValue stores v if it validates and reports whether it was stored.
// A rejected value leaves the previous one in place.
func (p *Parameter) SetValue(v string) bool {
	if !p.accepts(v) {
		return false
	}
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	return true
}

// Valid reports whether the current value passes validation.
func (p *Parameter) Valid() bool {
	return p.accepts(p.Value())
}

func (p *Parameter) accepts(v string) bool {
	if p.validator != nil {
		return p.validator(v)
	}
	return Validate(p.typ, v)
}

// Snapshot is a read-only copy of a parameter.
type Snapshot struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	Type       Type   `json:"type"`
	Attributes string `json:"attributes"`
}

// Snapshot copies the parameter's current state.
func (p *Parameter) Snapshot() Snapshot {
	return Snapshot{
		ID:         p.id,
		Label:      p.label,
		Value:      p.Value(),
		Type:       p.typ,
		Attributes: p.attributes,
	}
}
