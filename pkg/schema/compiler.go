package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
)

// typeNull is only a valid type tag in OpenAPI 3.1 documents.
const typeNull = "null"

// NullabilityMode selects how a schema signals that null is an accepted value.
type NullabilityMode int

const (
	// FlagBased honours the `nullable: true` keyword (OpenAPI 3.0).
	FlagBased NullabilityMode = iota
	// UnionBased treats "null" as a member of the type set (OpenAPI 3.1).
	UnionBased
)

func (m NullabilityMode) String() string {
	if m == UnionBased {
		return "union-based"
	}
	return "flag-based"
}

// EnumMode selects how `enum` on a string schema is enforced.
type EnumMode int

const (
	// LenientEnums accepts either an enum value or any other string.
	LenientEnums EnumMode = iota
	// StrictEnums accepts only the enumerated values.
	StrictEnums
)

// Options configures a Compiler.
type Options struct {
	Nullability NullabilityMode
	EnumMode    EnumMode
}

// Compiler turns OpenAPI Schema Objects into Descriptors.
//
// A Compiler holds no per-schema state; every Compile call is an independent
// session, so one Compiler may be shared between goroutines.
//
// Example usage:
//
//	c := schema.NewCompiler(schema.Options{Nullability: schema.UnionBased}, logger)
//	d := c.Compile(param.Schema)
//	jsonSchema := schema.NewRenderer().Render(d)
type Compiler struct {
	opts   Options
	logger *zap.Logger
}

// NewCompiler creates a Compiler. A nil logger discards diagnostics.
func NewCompiler(opts Options, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		opts:   opts,
		logger: logger.With(zap.String("component", "schema_compiler")),
	}
}

// Options returns the options the compiler was created with.
func (c *Compiler) Options() Options {
	return c.opts
}

// Compile compiles a schema reference. A nil reference, or one whose target
// was never resolved, compiles to Unconstrained.
func (c *Compiler) Compile(ref *openapi3.SchemaRef) Descriptor {
	if ref == nil {
		return Unconstrained{}
	}
	if ref.Value == nil {
		if ref.Ref != "" {
			c.logger.Warn("schema reference was not resolved", zap.String("ref", ref.Ref))
		}
		return Unconstrained{}
	}
	return c.CompileSchema(ref.Value)
}

// CompileSchema compiles a resolved schema.
func (c *Compiler) CompileSchema(s *openapi3.Schema) Descriptor {
	sess := &session{
		Compiler: c,
		active:   make(map[*openapi3.Schema]*Lazy),
		done:     make(map[*openapi3.Schema]Descriptor),
	}
	return sess.compile(s)
}

// session tracks the schemas of one compilation. Schemas still on the stack
// are in active; a second visit to one of them is a cycle and yields a Lazy.
type session struct {
	*Compiler
	active map[*openapi3.Schema]*Lazy
	done   map[*openapi3.Schema]Descriptor
	cycles int
}

func (s *session) compile(sch *openapi3.Schema) Descriptor {
	if sch == nil {
		return Unconstrained{}
	}
	if d, ok := s.done[sch]; ok {
		return d
	}
	if lazy, ok := s.active[sch]; ok {
		if lazy == nil {
			lazy = s.newLazy(sch)
			s.active[sch] = lazy
		}
		return lazy
	}

	s.active[sch] = nil
	d := s.compileSchema(sch)
	delete(s.active, sch)
	s.done[sch] = d
	return d
}

func (s *session) newLazy(sch *openapi3.Schema) *Lazy {
	s.cycles++
	name := sch.Title
	if name == "" {
		name = fmt.Sprintf("schema%d", s.cycles)
	}
	done := s.done
	return NewLazy(name, func() Descriptor {
		return done[sch]
	})
}

func (s *session) compileSchema(sch *openapi3.Schema) Descriptor {
	types := typeTags(sch)

	var d Descriptor
	switch len(types) {
	case 0:
		d = s.compileUntyped(sch)
	case 1:
		d = s.compileTyped(sch, types[0])
	default:
		members := make([]Descriptor, 0, len(types))
		for _, t := range types {
			members = append(members, s.compileTyped(sch, t))
		}
		d = Union{Description: sch.Description, Members: members}
	}

	if s.opts.Nullability == FlagBased && sch.Nullable {
		d = nullable(d, sch.Description)
	}
	return d
}

func (s *session) compileTyped(sch *openapi3.Schema, tag string) Descriptor {
	switch tag {
	case openapi3.TypeString:
		return s.compileString(sch)
	case openapi3.TypeNumber, openapi3.TypeInteger:
		return Number{
			Description:      sch.Description,
			Format:           sch.Format,
			Integer:          tag == openapi3.TypeInteger,
			Minimum:          sch.Min,
			Maximum:          sch.Max,
			ExclusiveMinimum: sch.ExclusiveMin && sch.Min != nil,
			ExclusiveMaximum: sch.ExclusiveMax && sch.Max != nil,
		}
	case openapi3.TypeBoolean:
		return Boolean{Description: sch.Description}
	case openapi3.TypeArray:
		items := Descriptor(Unconstrained{})
		if sch.Items != nil {
			items = s.compileRef(sch.Items)
		}
		return Array{Description: sch.Description, Items: items}
	case openapi3.TypeObject:
		return s.compileObject(sch)
	case typeNull:
		return Null{}
	default:
		s.logger.Debug("unrecognized schema type", zap.String("type", tag))
		return Unconstrained{Description: sch.Description}
	}
}

// compileUntyped handles schemas without a type tag. Properties imply an
// object; untyped compositions become unions or intersections; anything else
// is unconstrained.
func (s *session) compileUntyped(sch *openapi3.Schema) Descriptor {
	if len(sch.Properties) > 0 {
		return s.compileObject(sch)
	}
	if alts := append(append(openapi3.SchemaRefs{}, sch.OneOf...), sch.AnyOf...); len(alts) > 0 {
		return Union{Description: sch.Description, Members: s.compileRefs(alts)}
	}
	if len(sch.AllOf) > 0 {
		return Intersection{Description: sch.Description, Members: s.compileRefs(sch.AllOf)}
	}
	return Unconstrained{Description: sch.Description}
}

func (s *session) compileString(sch *openapi3.Schema) Descriptor {
	str := String{Description: sch.Description, Format: sch.Format}

	if len(sch.Enum) > 0 {
		enum := Enum{Values: append([]any(nil), sch.Enum...)}
		if s.opts.EnumMode == StrictEnums {
			enum.Description = sch.Description
			return enum
		}
		return Union{
			Description: sch.Description,
			Members:     []Descriptor{String{Format: sch.Format}, enum},
		}
	}

	if sch.Pattern != "" {
		if _, err := regexp.Compile(sch.Pattern); err != nil {
			s.logger.Warn("ignoring schema pattern that does not compile",
				zap.String("pattern", sch.Pattern),
				zap.Error(err))
		} else {
			str.Pattern = sch.Pattern
		}
	}
	return str
}

func (s *session) compileObject(sch *openapi3.Schema) Descriptor {
	required := make(map[string]bool, len(sch.Required))
	for _, name := range sch.Required {
		required[name] = true
	}

	names := make([]string, 0, len(sch.Properties))
	for name := range sch.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	obj := Object{Description: sch.Description}
	for _, name := range names {
		obj.Properties = append(obj.Properties, Property{
			Name:     name,
			Type:     s.compileRef(sch.Properties[name]),
			Optional: !required[name],
		})
	}

	ap := sch.AdditionalProperties
	switch {
	case ap.Has != nil && !*ap.Has:
		obj.Closed = true
	case ap.Schema != nil:
		obj.Additional = s.compileRef(ap.Schema)
	}
	return obj
}

func (s *session) compileRef(ref *openapi3.SchemaRef) Descriptor {
	if ref == nil || ref.Value == nil {
		return Unconstrained{}
	}
	return s.compile(ref.Value)
}

func (s *session) compileRefs(refs openapi3.SchemaRefs) []Descriptor {
	out := make([]Descriptor, 0, len(refs))
	for _, ref := range refs {
		out = append(out, s.compileRef(ref))
	}
	return out
}

func typeTags(sch *openapi3.Schema) []string {
	if sch.Type == nil {
		return nil
	}
	var tags []string
	seen := make(map[string]bool)
	for _, t := range *sch.Type {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

func nullable(d Descriptor, description string) Descriptor {
	switch v := d.(type) {
	case Null, Unconstrained:
		return d
	case Union:
		for _, m := range v.Members {
			if m.Kind() == KindNull {
				return d
			}
		}
		v.Members = append(append([]Descriptor(nil), v.Members...), Null{})
		return v
	}
	return Union{Description: description, Members: []Descriptor{d, Null{}}}
}
