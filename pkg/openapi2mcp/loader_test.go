package openapi2mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/schema"
)

const petstore30 = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.2.3
paths:
  /pets:
    get:
      operationId: listPets
      tags: [pets]
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: ok
    post:
      tags: [pets]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
      responses:
        "201":
          description: created
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        schema:
          type: string
    get:
      operationId: showPetById
      tags: [pets]
      responses:
        "200":
          description: ok
components:
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name:
          type: string
        tag:
          type: string
          nullable: true
`

func loadDoc(t *testing.T, content string) *Document {
	t.Helper()
	doc, err := NewLoader(nil).LoadFromData(context.Background(), []byte(content), nil)
	require.NoError(t, err)
	return doc
}

func TestLoadFromData_OpenAPI30(t *testing.T) {
	doc := loadDoc(t, petstore30)

	assert.Equal(t, Version30, doc.Version)
	assert.Equal(t, schema.FlagBased, doc.Version.Nullability())
	assert.Equal(t, []string{"/pets", "/pets/{petId}"}, doc.PathOrder)
	assert.Equal(t, "Petstore", doc.Title())
	assert.Equal(t, "1.2.3", doc.APIVersion())

	// The anonymous POST received a synthesized identifier.
	assert.Equal(t, "postPets", doc.PathItem("/pets").Post.OperationID)

	// References are resolved.
	body := doc.PathItem("/pets").Post.RequestBody.Value
	require.NotNil(t, body.Content["application/json"].Schema.Value)
	assert.Contains(t, body.Content["application/json"].Schema.Value.Properties, "name")
}

func TestLoadFromData_JSONDocument(t *testing.T) {
	doc := loadDoc(t, `{
		"openapi": "3.0.0",
		"info": {"title": "T", "version": "1"},
		"paths": {"/z": {"get": {"responses": {"200": {"description": "ok"}}}},
		          "/a": {"get": {"responses": {"200": {"description": "ok"}}}}}
	}`)

	assert.Equal(t, []string{"/z", "/a"}, doc.PathOrder)
	assert.Equal(t, "getZ", doc.PathItem("/z").Get.OperationID)
}

func TestLoadFromData_VersionErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errType ErrorType
	}{
		{"swagger 2", "swagger: \"2.0\"\ninfo: {title: t, version: '1'}\npaths: {}\n", ErrorTypeVersion},
		{"missing marker", "info: {title: t, version: '1'}\npaths: {}\n", ErrorTypeVersion},
		{"unsupported band", "openapi: 4.0.0\ninfo: {title: t, version: '1'}\npaths: {}\n", ErrorTypeVersion},
		{"empty", "   ", ErrorTypeParse},
		{"not an object", "- a\n- b\n", ErrorTypeParse},
		{"no paths", "openapi: 3.0.0\ninfo: {title: t, version: '1'}\npaths: {}\n", ErrorTypeStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil).LoadFromData(context.Background(), []byte(tt.content), nil)
			require.Error(t, err)
			assert.True(t, IsLoadErrorType(err, tt.errType), "got %v", err)
		})
	}
}

func TestDetectVersion(t *testing.T) {
	v, err := DetectVersion("3.0.1")
	require.NoError(t, err)
	assert.Equal(t, Version30, v)

	v, err = DetectVersion("3.1.0")
	require.NoError(t, err)
	assert.Equal(t, Version31, v)
	assert.True(t, v.SupportsWebhooks())
	assert.Equal(t, schema.UnionBased, v.Nullability())

	_, err = DetectVersion("3.2")
	assert.True(t, IsLoadErrorType(err, ErrorTypeVersion))
}

const webhooks31 = `
openapi: 3.1.0
info:
  title: Events
  version: "1"
paths:
  /events:
    get:
      responses:
        "200":
          description: ok
webhooks:
  newPet:
    post:
      operationId: onNewPet
      requestBody:
        content:
          application/json:
            schema:
              type: object
      responses:
        "200":
          description: ok
  petGone:
    post:
      responses:
        "200":
          description: ok
`

func TestLoadFromData_Webhooks(t *testing.T) {
	doc := loadDoc(t, webhooks31)

	assert.Equal(t, Version31, doc.Version)
	require.Len(t, doc.Webhooks, 2)
	assert.Equal(t, "newPet", doc.Webhooks[0].Name)
	assert.Equal(t, "onNewPet", doc.Webhooks[0].Item.Post.OperationID)
	assert.Equal(t, "postPetGone", doc.Webhooks[1].Item.Post.OperationID)
}

func TestLoadFromData_WebhooksIgnoredIn30(t *testing.T) {
	content := `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /a:
    get:
      responses:
        "200": {description: ok}
webhooks:
  hook:
    post:
      operationId: onHook
      responses:
        "200": {description: ok}
`
	doc := loadDoc(t, content)
	assert.Empty(t, doc.Webhooks)
	assert.NotEmpty(t, doc.Warnings)
}

func TestLoadFromData_DuplicateOperationIDsWarn(t *testing.T) {
	doc := loadDoc(t, `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /a:
    get:
      operationId: same
      responses:
        "200": {description: ok}
  /b:
    get:
      operationId: same
      responses:
        "200": {description: ok}
`)
	assert.Contains(t, doc.Warnings, `duplicate operationId "same"; only the first occurrence is reachable`)

	op, ok := FindOperation(doc, "same")
	require.True(t, ok)
	assert.Equal(t, "/a", op.Path)
}

func TestLoad_FileAndURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore30), 0o600))

	doc, err := NewLoader(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, doc.PathOrder, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(petstore30))
	}))
	defer srv.Close()

	doc, err = NewLoader(nil).Load(context.Background(), srv.URL+"/openapi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Petstore", doc.Title())

	_, err = NewLoader(nil).Load(context.Background(), srv.URL+"/missing.yaml")
	assert.True(t, IsLoadErrorType(err, ErrorTypeSource))

	_, err = NewLoader(nil).Load(context.Background(), filepath.Join(dir, "nope.yaml"))
	assert.True(t, IsLoadErrorType(err, ErrorTypeSource))

	_, err = NewLoader(nil).Load(context.Background(), "")
	assert.True(t, IsLoadErrorType(err, ErrorTypeSource))
}

func TestLoad_SizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore30), 0o600))

	l := NewLoader(nil)
	l.MaxBytes = 16
	_, err := l.Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum allowed size")
}

const exclusiveBounds31 = `
openapi: 3.1.0
info: {title: Bounds, version: "1"}
paths:
  /items:
    get:
      operationId: listItems
      parameters:
        - name: limit
          in: query
          schema: {type: integer, exclusiveMinimum: 0, maximum: 100}
        - name: ratio
          in: query
          schema: {type: number, minimum: 0.5, exclusiveMinimum: 0, exclusiveMaximum: 1}
      responses:
        "200": {description: ok}
`

func TestLoadFromData_NumericExclusiveBounds31(t *testing.T) {
	doc := loadDoc(t, exclusiveBounds31)

	op, ok := FindOperation(doc, "listItems")
	require.True(t, ok)
	limit := op.Parameters[0].Value.Schema.Value
	require.NotNil(t, limit.Min)
	assert.Equal(t, 0.0, *limit.Min)
	assert.True(t, limit.ExclusiveMin)
	assert.Equal(t, 100.0, *limit.Max)
	assert.False(t, limit.ExclusiveMax)

	// The inclusive minimum of 0.5 is stricter than > 0.
	ratio := op.Parameters[1].Value.Schema.Value
	assert.Equal(t, 0.5, *ratio.Min)
	assert.False(t, ratio.ExclusiveMin)
	assert.Equal(t, 1.0, *ratio.Max)
	assert.True(t, ratio.ExclusiveMax)
}

func TestRewriteExclusiveBounds(t *testing.T) {
	raw := map[string]any{
		"a": map[string]any{"exclusiveMinimum": 3, "minimum": 3},
		"b": []any{map[string]any{"exclusiveMaximum": 2.5, "maximum": 1}},
		"c": map[string]any{"exclusiveMinimum": true, "minimum": 1},
	}
	assert.Equal(t, 2, rewriteExclusiveBounds(raw))
	assert.Equal(t, map[string]any{"exclusiveMinimum": true, "minimum": 3}, raw["a"])
	assert.Equal(t, []any{map[string]any{"maximum": 1}}, raw["b"])
	assert.Equal(t, map[string]any{"exclusiveMinimum": true, "minimum": 1}, raw["c"])
}
