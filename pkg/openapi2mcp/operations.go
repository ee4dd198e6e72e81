// operations.go
package openapi2mcp

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// operationMethods are the PathItem keys that hold operations, in scan order.
// Other PathItem keys (parameters, summary, servers, ...) are never operations.
var operationMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// WebhookPathPrefix marks OpenAPIOperation.Path values that name a webhook
// rather than a URL path.
const WebhookPathPrefix = "webhook:"

func operationFor(item *openapi3.PathItem, method string) *openapi3.Operation {
	if item == nil {
		return nil
	}
	switch method {
	case "get":
		return item.Get
	case "put":
		return item.Put
	case "post":
		return item.Post
	case "delete":
		return item.Delete
	case "options":
		return item.Options
	case "head":
		return item.Head
	case "patch":
		return item.Patch
	case "trace":
		return item.Trace
	}
	return nil
}

// ExtractOpenAPIOperations returns every operation under the document's
// paths, in document order and method order. Webhooks are not included:
// they describe inbound calls and cannot be dispatched.
//
// Example usage:
//
//	for _, op := range openapi2mcp.ExtractOpenAPIOperations(doc) {
//		fmt.Println(op.Method, op.Path, op.OperationID)
//	}
func ExtractOpenAPIOperations(doc *Document) []OpenAPIOperation {
	var ops []OpenAPIOperation
	for _, path := range doc.PathOrder {
		item := doc.PathItem(path)
		for _, method := range operationMethods {
			if op := operationFor(item, method); op != nil {
				ops = append(ops, newOperation(path, method, item, op, false))
			}
		}
	}
	return ops
}

// FindOperation looks an operation up by its exact identifier. Paths are
// scanned first, in document order; for 3.1 documents webhooks are scanned
// when no path matches.
func FindOperation(doc *Document, operationID string) (*OpenAPIOperation, bool) {
	for _, path := range doc.PathOrder {
		if op, ok := findInPathItem(path, doc.PathItem(path), operationID, false); ok {
			return op, true
		}
	}
	if !doc.Version.SupportsWebhooks() {
		return nil, false
	}
	for _, wh := range doc.Webhooks {
		if op, ok := findInPathItem(WebhookPathPrefix+wh.Name, wh.Item, operationID, true); ok {
			return op, true
		}
	}
	return nil, false
}

func findInPathItem(path string, item *openapi3.PathItem, operationID string, webhook bool) (*OpenAPIOperation, bool) {
	for _, method := range operationMethods {
		op := operationFor(item, method)
		if op != nil && op.OperationID == operationID {
			resolved := newOperation(path, method, item, op, webhook)
			return &resolved, true
		}
	}
	return nil, false
}

func newOperation(path, method string, item *openapi3.PathItem, op *openapi3.Operation, webhook bool) OpenAPIOperation {
	return OpenAPIOperation{
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Description: op.Description,
		Path:        path,
		Method:      method,
		Webhook:     webhook,
		Parameters:  MergeParameters(item.Parameters, op.Parameters),
		RequestBody: op.RequestBody,
		Tags:        op.Tags,
		Deprecated:  op.Deprecated,
	}
}

// MergeParameters combines path-level and operation-level parameters.
// An operation-level parameter replaces a path-level one with the same
// location and name; surviving entries keep their original relative order.
func MergeParameters(pathLevel, opLevel openapi3.Parameters) openapi3.Parameters {
	all := make(openapi3.Parameters, 0, len(pathLevel)+len(opLevel))
	all = append(all, pathLevel...)
	all = append(all, opLevel...)

	type key struct{ in, name string }
	seen := make(map[key]bool, len(all))

	// Walk backwards so the later (operation-level) entry claims the key.
	kept := make(openapi3.Parameters, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		ref := all[i]
		if ref == nil || ref.Value == nil {
			continue
		}
		k := key{ref.Value.In, ref.Value.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, ref)
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// ParametersIn returns the parameters of op at the given location. When two
// names escape to the same argument key only the first is returned.
func (op *OpenAPIOperation) ParametersIn(location string) []*openapi3.Parameter {
	var out []*openapi3.Parameter
	seen := map[string]bool{}
	for _, ref := range op.Parameters {
		if ref == nil || ref.Value == nil || ref.Value.In != location || ref.Value.Name == "" {
			continue
		}
		key := escapeParameterName(ref.Value.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref.Value)
	}
	return out
}
