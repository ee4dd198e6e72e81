package schema

import "fmt"

// DefinitionsPrefix is the JSON pointer prefix Lazy descriptors render to.
const DefinitionsPrefix = "#/definitions/"

// Renderer emits JSON Schema for Descriptors.
//
// Every Lazy descriptor becomes a "$ref" into a shared definitions table, so a
// Renderer must be used for a single output document: render all of its
// descriptors, then place Definitions() at the document root.
type Renderer struct {
	names   map[*Lazy]string
	taken   map[string]bool
	pending []*Lazy
	defs    map[string]any
}

func NewRenderer() *Renderer {
	return &Renderer{
		names: make(map[*Lazy]string),
		taken: make(map[string]bool),
		defs:  make(map[string]any),
	}
}

// Render returns the JSON Schema for d.
func (r *Renderer) Render(d Descriptor) map[string]any {
	switch v := d.(type) {
	case nil:
		return map[string]any{}
	case Unconstrained:
		return withDescription(map[string]any{}, v.Description)
	case String:
		out := map[string]any{"type": "string"}
		if v.Format != "" {
			out["format"] = v.Format
		}
		if v.Pattern != "" {
			out["pattern"] = v.Pattern
		}
		return withDescription(out, v.Description)
	case Enum:
		return withDescription(map[string]any{"enum": v.Values}, v.Description)
	case Number:
		out := map[string]any{"type": "number"}
		if v.Integer {
			out["type"] = "integer"
		}
		if v.Format != "" {
			out["format"] = v.Format
		}
		switch {
		case v.Minimum != nil && v.ExclusiveMinimum:
			out["exclusiveMinimum"] = *v.Minimum
		case v.Minimum != nil:
			out["minimum"] = *v.Minimum
		}
		switch {
		case v.Maximum != nil && v.ExclusiveMaximum:
			out["exclusiveMaximum"] = *v.Maximum
		case v.Maximum != nil:
			out["maximum"] = *v.Maximum
		}
		return withDescription(out, v.Description)
	case Boolean:
		return withDescription(map[string]any{"type": "boolean"}, v.Description)
	case Null:
		return map[string]any{"type": "null"}
	case Array:
		return withDescription(map[string]any{
			"type":  "array",
			"items": r.Render(v.Items),
		}, v.Description)
	case Object:
		return r.renderObject(v)
	case Union:
		return withDescription(map[string]any{"anyOf": r.renderAll(v.Members)}, v.Description)
	case Intersection:
		return withDescription(map[string]any{"allOf": r.renderAll(v.Members)}, v.Description)
	case *Lazy:
		return map[string]any{"$ref": DefinitionsPrefix + r.define(v)}
	default:
		return map[string]any{}
	}
}

func (r *Renderer) renderObject(o Object) map[string]any {
	out := map[string]any{"type": "object"}
	if len(o.Properties) > 0 {
		props := make(map[string]any, len(o.Properties))
		var required []string
		for _, p := range o.Properties {
			props[p.Name] = r.Render(p.Type)
			if !p.Optional {
				required = append(required, p.Name)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			out["required"] = required
		}
	}
	switch {
	case o.Closed:
		out["additionalProperties"] = false
	case o.Additional != nil:
		out["additionalProperties"] = r.Render(o.Additional)
	}
	return withDescription(out, o.Description)
}

func (r *Renderer) renderAll(ds []Descriptor) []any {
	out := make([]any, 0, len(ds))
	for _, d := range ds {
		out = append(out, r.Render(d))
	}
	return out
}

// define assigns l a unique definition name and queues its target.
func (r *Renderer) define(l *Lazy) string {
	if name, ok := r.names[l]; ok {
		return name
	}
	base := l.Name()
	if base == "" {
		base = "schema"
	}
	name := base
	for i := 1; r.taken[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	r.taken[name] = true
	r.names[l] = name
	r.pending = append(r.pending, l)
	return name
}

// Definitions renders every queued Lazy target and returns the definitions
// table, or nil when nothing referenced one.
func (r *Renderer) Definitions() map[string]any {
	for len(r.pending) > 0 {
		l := r.pending[0]
		r.pending = r.pending[1:]
		r.defs[r.names[l]] = r.Render(l.Target())
	}
	if len(r.defs) == 0 {
		return nil
	}
	return r.defs
}

// Document renders d as a standalone JSON Schema, definitions included.
func Document(d Descriptor) map[string]any {
	r := NewRenderer()
	out := r.Render(d)
	if defs := r.Definitions(); defs != nil {
		out["definitions"] = defs
	}
	return out
}

func withDescription(out map[string]any, description string) map[string]any {
	if description != "" {
		out["description"] = description
	}
	return out
}
