package schema

import (
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(tags ...string) *openapi3.Types {
	t := openapi3.Types(tags)
	return &t
}

func float(v float64) *float64 { return &v }

func TestCompile_PrimitiveKinds(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	tests := []struct {
		name   string
		schema *openapi3.Schema
		want   Kind
	}{
		{"string", &openapi3.Schema{Type: types("string")}, KindString},
		{"number", &openapi3.Schema{Type: types("number")}, KindNumber},
		{"integer", &openapi3.Schema{Type: types("integer")}, KindNumber},
		{"boolean", &openapi3.Schema{Type: types("boolean")}, KindBoolean},
		{"array", &openapi3.Schema{Type: types("array")}, KindArray},
		{"object", &openapi3.Schema{Type: types("object")}, KindObject},
		{"null", &openapi3.Schema{Type: types("null")}, KindNull},
		{"untyped", &openapi3.Schema{}, KindUnconstrained},
		{"unknown tag", &openapi3.Schema{Type: types("file")}, KindUnconstrained},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CompileSchema(tt.schema).Kind())
		})
	}
}

func TestCompile_MissingSchema(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	assert.Equal(t, Unconstrained{}, c.Compile(nil))
	assert.Equal(t, Unconstrained{}, c.Compile(&openapi3.SchemaRef{Ref: "#/components/schemas/Gone"}))
	assert.Equal(t, Unconstrained{}, c.CompileSchema(nil))
}

func TestCompile_Number(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	d := c.CompileSchema(&openapi3.Schema{Type: types("integer"), Min: float(1), Max: float(10)})
	num, ok := d.(Number)
	require.True(t, ok)
	assert.True(t, num.Integer)
	assert.Equal(t, 1.0, *num.Minimum)
	assert.Equal(t, 10.0, *num.Maximum)

	d = c.CompileSchema(&openapi3.Schema{Type: types("number")})
	num = d.(Number)
	assert.False(t, num.Integer)
	assert.Nil(t, num.Minimum)

	d = c.CompileSchema(&openapi3.Schema{Type: types("number"), Min: float(0), ExclusiveMin: true, ExclusiveMax: true})
	num = d.(Number)
	assert.True(t, num.ExclusiveMinimum)
	assert.False(t, num.ExclusiveMaximum, "exclusiveMaximum without maximum has no bound")
}

func TestCompile_StringEnum(t *testing.T) {
	single := &openapi3.Schema{Type: types("string"), Enum: []any{"asc"}, Pattern: "^a"}
	multi := &openapi3.Schema{Type: types("string"), Enum: []any{"asc", "desc"}}

	t.Run("lenient single value", func(t *testing.T) {
		d := NewCompiler(Options{}, nil).CompileSchema(single)
		u, ok := d.(Union)
		require.True(t, ok)
		require.Len(t, u.Members, 2)
		assert.Equal(t, String{}, u.Members[0], "pattern must not be layered onto a union")
		assert.Equal(t, Enum{Values: []any{"asc"}}, u.Members[1])
	})

	t.Run("lenient multiple values", func(t *testing.T) {
		d := NewCompiler(Options{}, nil).CompileSchema(multi)
		u, ok := d.(Union)
		require.True(t, ok)
		assert.Equal(t, Enum{Values: []any{"asc", "desc"}}, u.Members[1])
	})

	t.Run("strict", func(t *testing.T) {
		d := NewCompiler(Options{EnumMode: StrictEnums}, nil).CompileSchema(multi)
		assert.Equal(t, Enum{Values: []any{"asc", "desc"}}, d)
	})
}

func TestCompile_StringPattern(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	d := c.CompileSchema(&openapi3.Schema{Type: types("string"), Pattern: `^\d{3}$`, Format: "code"})
	assert.Equal(t, String{Pattern: `^\d{3}$`, Format: "code"}, d)

	// Lookahead is not supported by RE2; the pattern is dropped rather than failing.
	d = c.CompileSchema(&openapi3.Schema{Type: types("string"), Pattern: `^(?=a)`})
	assert.Equal(t, String{}, d)
}

func TestCompile_ArrayItems(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	d := c.CompileSchema(&openapi3.Schema{Type: types("array")})
	assert.Equal(t, Array{Items: Unconstrained{}}, d)

	d = c.CompileSchema(&openapi3.Schema{
		Type:  types("array"),
		Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: types("string")}},
	})
	assert.Equal(t, Array{Items: String{}}, d)
}

func TestCompile_ObjectOptionality(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	sch := &openapi3.Schema{
		Properties: openapi3.Schemas{
			"id":   {Value: &openapi3.Schema{Type: types("string")}},
			"name": {Value: &openapi3.Schema{Type: types("string")}},
			"age":  {Value: &openapi3.Schema{Type: types("integer")}},
		},
		Required: []string{"id", "age"},
	}

	d := c.CompileSchema(sch)
	obj, ok := d.(Object)
	require.True(t, ok, "properties without a type imply an object")
	require.Len(t, obj.Properties, 3)

	for _, p := range obj.Properties {
		switch p.Name {
		case "id", "age":
			assert.False(t, p.Optional, p.Name)
		default:
			assert.True(t, p.Optional, p.Name)
		}
	}
}

func TestCompile_PropertiesOnNonObjectType(t *testing.T) {
	c := NewCompiler(Options{}, nil)

	d := c.CompileSchema(&openapi3.Schema{
		Type:       types("string"),
		Properties: openapi3.Schemas{"x": {Value: &openapi3.Schema{}}},
	})
	assert.Equal(t, KindString, d.Kind())
}

func TestCompile_AdditionalProperties(t *testing.T) {
	c := NewCompiler(Options{}, nil)
	no := false

	d := c.CompileSchema(&openapi3.Schema{
		Type:                 types("object"),
		AdditionalProperties: openapi3.AdditionalProperties{Has: &no},
	})
	assert.True(t, d.(Object).Closed)

	d = c.CompileSchema(&openapi3.Schema{
		Type: types("object"),
		AdditionalProperties: openapi3.AdditionalProperties{
			Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: types("integer")}},
		},
	})
	assert.Equal(t, Number{Integer: true}, d.(Object).Additional)
}

func TestCompile_Nullability(t *testing.T) {
	flag := &openapi3.Schema{Type: types("string"), Nullable: true}
	set := &openapi3.Schema{Type: types("string", "null")}

	t.Run("flag based honours nullable", func(t *testing.T) {
		d := NewCompiler(Options{Nullability: FlagBased}, nil).CompileSchema(flag)
		assert.Equal(t, Union{Members: []Descriptor{String{}, Null{}}}, d)
	})

	t.Run("union based ignores nullable", func(t *testing.T) {
		d := NewCompiler(Options{Nullability: UnionBased}, nil).CompileSchema(flag)
		assert.Equal(t, String{}, d)
	})

	t.Run("union based type set", func(t *testing.T) {
		d := NewCompiler(Options{Nullability: UnionBased}, nil).CompileSchema(set)
		assert.Equal(t, Union{Members: []Descriptor{String{}, Null{}}}, d)
	})
}

func TestCompile_Composition(t *testing.T) {
	c := NewCompiler(Options{}, nil)
	str := &openapi3.SchemaRef{Value: &openapi3.Schema{Type: types("string")}}
	num := &openapi3.SchemaRef{Value: &openapi3.Schema{Type: types("number")}}

	d := c.CompileSchema(&openapi3.Schema{OneOf: openapi3.SchemaRefs{str, num}})
	assert.Equal(t, Union{Members: []Descriptor{String{}, Number{}}}, d)

	d = c.CompileSchema(&openapi3.Schema{AllOf: openapi3.SchemaRefs{str}})
	assert.Equal(t, Intersection{Members: []Descriptor{String{}}}, d)
}

func TestCompile_Cycle(t *testing.T) {
	node := &openapi3.Schema{Title: "Node", Type: types("object")}
	node.Properties = openapi3.Schemas{
		"value":    {Value: &openapi3.Schema{Type: types("string")}},
		"children": {Value: &openapi3.Schema{Type: types("array"), Items: &openapi3.SchemaRef{Value: node}}},
	}
	node.Required = []string{"value"}

	d := NewCompiler(Options{}, nil).CompileSchema(node)
	obj, ok := d.(Object)
	require.True(t, ok)

	children, ok := obj.Property("children")
	require.True(t, ok)
	arr, ok := children.Type.(Array)
	require.True(t, ok)

	lazy, ok := arr.Items.(*Lazy)
	require.True(t, ok, "the back edge must be deferred, not unrolled")
	assert.Equal(t, "Node", lazy.Name())

	target, ok := lazy.Target().(Object)
	require.True(t, ok)
	assert.Len(t, target.Properties, 2)
	assert.Equal(t, KindObject, Resolve(arr.Items).Kind())
}

func TestCompile_SharedSchemaIsNotACycle(t *testing.T) {
	shared := &openapi3.Schema{Type: types("string")}
	sch := &openapi3.Schema{
		Type: types("object"),
		Properties: openapi3.Schemas{
			"a": {Value: shared},
			"b": {Value: shared},
		},
	}

	obj := NewCompiler(Options{}, nil).CompileSchema(sch).(Object)
	for _, p := range obj.Properties {
		assert.Equal(t, KindString, p.Type.Kind())
	}
}

func TestLazy_ConcurrentTarget(t *testing.T) {
	node := &openapi3.Schema{Title: "Node", Type: types("object")}
	node.Properties = openapi3.Schemas{
		"next": {Value: node},
	}

	d := NewCompiler(Options{}, nil).CompileSchema(node)
	next, ok := d.(Object).Property("next")
	require.True(t, ok)
	lazy, ok := next.Type.(*Lazy)
	require.True(t, ok)

	const workers = 16
	results := make([]Descriptor, workers)
	rendered := make([]map[string]any, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = lazy.Target()
			rendered[i] = Document(d)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, results[0], results[i])
		assert.Equal(t, rendered[0], rendered[i])
	}
	assert.Equal(t, KindObject, results[0].Kind())
}
