// Package schema compiles OpenAPI Schema Objects into Descriptors, a closed set of
// runtime-checkable type descriptions, and renders them back out as JSON Schema.
//
// A Descriptor is immutable once compiled and safe for concurrent use. Cyclic
// schemas are represented with Lazy descriptors that point back into the
// already compiled graph instead of being unrolled.
package schema

import "sync"

// Kind identifies the variant of a Descriptor.
type Kind int

const (
	KindUnconstrained Kind = iota
	KindString
	KindEnum
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindNull
	KindUnion
	KindIntersection
	KindLazy
)

var kindNames = map[Kind]string{
	KindUnconstrained: "unconstrained",
	KindString:        "string",
	KindEnum:          "enum",
	KindNumber:        "number",
	KindBoolean:       "boolean",
	KindArray:         "array",
	KindObject:        "object",
	KindNull:          "null",
	KindUnion:         "union",
	KindIntersection:  "intersection",
	KindLazy:          "lazy",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Descriptor is a compiled schema. Consumers switch on the concrete type or on Kind.
type Descriptor interface {
	Kind() Kind
}

// Unconstrained accepts any value. It is what missing, untyped or unusable
// schemas compile to.
type Unconstrained struct {
	Description string
}

func (Unconstrained) Kind() Kind { return KindUnconstrained }

// String is a string value, optionally constrained by a pattern.
type String struct {
	Description string
	Format      string
	// Pattern is the original expression; it is only set when it compiled.
	Pattern string
}

func (String) Kind() Kind { return KindString }

// Enum accepts exactly one of Values.
type Enum struct {
	Description string
	Values      []any
}

func (Enum) Kind() Kind { return KindEnum }

// Number is a numeric value. Minimum and Maximum are inclusive unless the
// matching Exclusive flag is set.
type Number struct {
	Description      string
	Format           string
	Integer          bool
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool
}

func (Number) Kind() Kind { return KindNumber }

type Boolean struct {
	Description string
}

func (Boolean) Kind() Kind { return KindBoolean }

// Array wraps its element descriptor. Items is never nil.
type Array struct {
	Description string
	Items       Descriptor
}

func (Array) Kind() Kind { return KindArray }

// Property is a single named member of an Object.
type Property struct {
	Name     string
	Type     Descriptor
	Optional bool
}

// Object is a structured value with ordered properties.
//
// Additional describes values of undeclared properties: nil allows anything,
// and Closed rejects undeclared properties entirely.
type Object struct {
	Description string
	Properties  []Property
	Additional  Descriptor
	Closed      bool
}

func (Object) Kind() Kind { return KindObject }

// Property returns the named property, if declared.
func (o Object) Property(name string) (Property, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

type Null struct{}

func (Null) Kind() Kind { return KindNull }

// Union accepts a value matching any member.
type Union struct {
	Description string
	Members     []Descriptor
}

func (Union) Kind() Kind { return KindUnion }

// Intersection accepts a value matching every member.
type Intersection struct {
	Description string
	Members     []Descriptor
}

func (Intersection) Kind() Kind { return KindIntersection }

// Lazy is a deferred reference to a descriptor that was still being compiled
// when it was referenced. The target is resolved once, on first use.
type Lazy struct {
	name    string
	once    sync.Once
	resolve func() Descriptor
	target  Descriptor
}

// NewLazy returns a Lazy descriptor that calls resolve the first time its
// target is requested.
func NewLazy(name string, resolve func() Descriptor) *Lazy {
	return &Lazy{name: name, resolve: resolve}
}

func (*Lazy) Kind() Kind { return KindLazy }

// Name is a stable label for the referenced schema, used for rendering.
func (l *Lazy) Name() string { return l.name }

// Target resolves the deferred descriptor. A resolver that yields nil is
// treated as Unconstrained.
func (l *Lazy) Target() Descriptor {
	l.once.Do(func() {
		if l.resolve != nil {
			l.target = l.resolve()
		}
		if l.target == nil {
			l.target = Unconstrained{}
		}
		l.resolve = nil
	})
	return l.target
}

// Resolve follows Lazy descriptors until it reaches a concrete one.
func Resolve(d Descriptor) Descriptor {
	for i := 0; i < 64; i++ {
		l, ok := d.(*Lazy)
		if !ok {
			return d
		}
		d = l.Target()
	}
	return Unconstrained{}
}

// IsUnconstrained reports whether d carries no constraint at all.
func IsUnconstrained(d Descriptor) bool {
	_, ok := Resolve(d).(Unconstrained)
	return ok
}
