package openapi2mcp

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func param(in, name string, required bool) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: &openapi3.Parameter{
		In:       in,
		Name:     name,
		Required: required,
		Schema:   openapi3.NewStringSchema().NewRef(),
	}}
}

func names(params openapi3.Parameters) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Value.In+":"+p.Value.Name)
	}
	return out
}

func TestMergeParameters_Disjoint(t *testing.T) {
	pathLevel := openapi3.Parameters{param("path", "id", true), param("header", "X-Trace", false)}
	opLevel := openapi3.Parameters{param("query", "limit", false), param("query", "offset", false), param("cookie", "s", false)}

	merged := MergeParameters(pathLevel, opLevel)
	assert.Len(t, merged, len(pathLevel)+len(opLevel))
	assert.Equal(t, []string{"path:id", "header:X-Trace", "query:limit", "query:offset", "cookie:s"}, names(merged))
}

func TestMergeParameters_OperationLevelWins(t *testing.T) {
	pathLevel := openapi3.Parameters{param("query", "limit", false), param("path", "id", true)}
	override := param("query", "limit", true)
	override.Value.Schema = openapi3.NewIntegerSchema().NewRef()
	opLevel := openapi3.Parameters{override, param("query", "sort", false)}

	merged := MergeParameters(pathLevel, opLevel)
	require.Len(t, merged, 3)
	assert.Equal(t, []string{"path:id", "query:limit", "query:sort"}, names(merged))

	limit := merged[1].Value
	assert.True(t, limit.Required)
	assert.True(t, limit.Schema.Value.Type.Is("integer"))
}

func TestMergeParameters_SameNameDifferentLocation(t *testing.T) {
	merged := MergeParameters(
		openapi3.Parameters{param("query", "id", false)},
		openapi3.Parameters{param("header", "id", false), nil},
	)
	assert.Equal(t, []string{"query:id", "header:id"}, names(merged))
}

func TestFindOperation_MergesPathItemParameters(t *testing.T) {
	doc := loadDoc(t, petstore30)

	op, ok := FindOperation(doc, "showPetById")
	require.True(t, ok)
	assert.Equal(t, "/pets/{petId}", op.Path)
	assert.Equal(t, "get", op.Method)
	assert.False(t, op.Webhook)
	require.Len(t, op.ParametersIn(openapi3.ParameterInPath), 1)
	assert.Equal(t, "petId", op.ParametersIn(openapi3.ParameterInPath)[0].Name)

	_, ok = FindOperation(doc, "nope")
	assert.False(t, ok)
}

func TestFindOperation_IgnoresNonMethodKeys(t *testing.T) {
	doc := loadDoc(t, `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /a:
    summary: not an operation
    description: also not an operation
    get:
      operationId: getA
      responses:
        "200": {description: ok}
`)
	ops := ExtractOpenAPIOperations(doc)
	require.Len(t, ops, 1)
	assert.Equal(t, "getA", ops[0].OperationID)
}

func TestFindOperation_Webhooks(t *testing.T) {
	doc := loadDoc(t, webhooks31)

	op, ok := FindOperation(doc, "onNewPet")
	require.True(t, ok)
	assert.True(t, op.Webhook)
	assert.Equal(t, "webhook:newPet", op.Path)
	assert.Equal(t, "post", op.Method)

	// Webhooks are never extracted for registration.
	for _, o := range ExtractOpenAPIOperations(doc) {
		assert.False(t, o.Webhook)
	}

	// Without the 3.1 band the webhook scan is skipped.
	doc.Version = Version30
	_, ok = FindOperation(doc, "onNewPet")
	assert.False(t, ok)
}

func TestExtractOpenAPIOperations_Order(t *testing.T) {
	doc := loadDoc(t, `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /b:
    post:
      operationId: postB
      responses: {"200": {description: ok}}
    get:
      operationId: getB
      responses: {"200": {description: ok}}
  /a:
    delete:
      operationId: deleteA
      responses: {"200": {description: ok}}
`)
	var ids []string
	for _, op := range ExtractOpenAPIOperations(doc) {
		ids = append(ids, op.OperationID)
	}
	assert.Equal(t, []string{"getB", "postB", "deleteA"}, ids)
}
