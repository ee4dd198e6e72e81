package openapi2mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOperationID(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/users/{id}", "getUsersById"},
		{"POST", "/users/{userId}/posts/{postId}", "postUsersByUserIdPostsByPostId"},
		{"get", "/users", "getUsers"},
		{"DELETE", "/api-keys/{key_id}", "deleteApiKeysByKeyId"},
		{"put", "/snake_case/path", "putSnakeCasePath"},
		{"get", "/", "get"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateOperationID(tt.path, tt.method))
		})
	}
}

func TestIDContext_Unique(t *testing.T) {
	ctx := NewIDContext()

	assert.Equal(t, "getUsers", ctx.Unique("getUsers"))
	assert.Equal(t, "getUsers_1", ctx.Unique("getUsers"))
	assert.Equal(t, "getUsers_2", ctx.Unique("getUsers"))
	assert.False(t, ctx.Claim("getUsers_1"))
	assert.True(t, ctx.Claim("other"))
}

const collidingIDs = `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /users-list:
    get:
      responses:
        "200": {description: ok}
  /users_list:
    get:
      responses:
        "200": {description: ok}
  /accounts:
    get:
      operationId: getUsersList_1
      responses:
        "200": {description: ok}
`

func TestAssignOperationIDs_CollisionsAreSuffixed(t *testing.T) {
	doc := loadDoc(t, collidingIDs)

	first := doc.PathItem("/users-list").Get.OperationID
	second := doc.PathItem("/users_list").Get.OperationID

	assert.Equal(t, "getUsersList", first)
	// getUsersList_1 is explicitly claimed later in the document.
	assert.Equal(t, "getUsersList_2", second)
	assert.Equal(t, "getUsersList_1", doc.PathItem("/accounts").Get.OperationID)
}

func TestAssignOperationIDs_Deterministic(t *testing.T) {
	a := loadDoc(t, collidingIDs)
	b := loadDoc(t, collidingIDs)

	idsOf := func(d *Document) []string {
		var ids []string
		for _, op := range ExtractOpenAPIOperations(d) {
			ids = append(ids, op.OperationID)
		}
		return ids
	}
	assert.Equal(t, idsOf(a), idsOf(b))
}

func TestAssignOperationIDs_DoesNotMutateUntilApplied(t *testing.T) {
	doc := loadDoc(t, petstore30)
	doc.PathItem("/pets").Post.OperationID = ""

	assignment := AssignOperationIDs(doc, NewIDContext())
	require.Len(t, assignment.Generated, 1)
	assert.Equal(t, "POST /pets", assignment.Generated[0].Key())
	assert.Empty(t, doc.PathItem("/pets").Post.OperationID)

	assignment.Apply()
	assert.Equal(t, "postPets", doc.PathItem("/pets").Post.OperationID)
}
