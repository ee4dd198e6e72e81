package openapi2mcp

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	pathParamPattern  = regexp.MustCompile(`\{([^}]+)\}`)
	hyphenPattern     = regexp.MustCompile(`-(\w)`)
	underscorePattern = regexp.MustCompile(`_(\w)`)
)

// GenerateOperationID derives an identifier from an HTTP method and path:
// GET /users/{id} becomes getUsersById.
func GenerateOperationID(path, method string) string {
	p := strings.TrimPrefix(path, "/")
	p = pathParamPattern.ReplaceAllStringFunc(p, func(m string) string {
		return "By" + capitalize(m[1:len(m)-1])
	})
	p = hyphenPattern.ReplaceAllStringFunc(p, func(m string) string {
		return strings.ToUpper(m[1:])
	})
	p = underscorePattern.ReplaceAllStringFunc(p, func(m string) string {
		return strings.ToUpper(m[1:])
	})

	segments := strings.Split(p, "/")
	for i := 1; i < len(segments); i++ {
		segments[i] = capitalize(segments[i])
	}
	return strings.ToLower(method) + capitalize(strings.Join(segments, ""))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// IDContext is the set of operation identifiers claimed during one
// synthesis pass.
type IDContext struct {
	claimed map[string]bool
}

func NewIDContext() *IDContext {
	return &IDContext{claimed: make(map[string]bool)}
}

// Claim records id and reports whether it was free.
func (c *IDContext) Claim(id string) bool {
	if c.claimed[id] {
		return false
	}
	c.claimed[id] = true
	return true
}

// Unique claims base, or the first free base_1, base_2, ...
func (c *IDContext) Unique(base string) string {
	if c.Claim(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if c.Claim(candidate) {
			return candidate
		}
	}
}

// GeneratedID is a synthesized identifier for an anonymous operation.
type GeneratedID struct {
	Method      string
	Path        string
	OperationID string
	Webhook     bool

	op *openapi3.Operation
}

// Key identifies the operation as "METHOD path".
func (g GeneratedID) Key() string {
	return strings.ToUpper(g.Method) + " " + g.Path
}

// IDAssignment is the result of AssignOperationIDs.
type IDAssignment struct {
	Generated  []GeneratedID
	Duplicates []string
}

// Apply writes the generated identifiers onto their operations.
func (a IDAssignment) Apply() {
	for _, g := range a.Generated {
		if g.op != nil && g.op.OperationID == "" {
			g.op.OperationID = g.OperationID
		}
	}
}

type operationSite struct {
	path    string
	method  string
	webhook bool
	op      *openapi3.Operation
}

func operationSites(doc *Document) []operationSite {
	var sites []operationSite
	for _, path := range doc.PathOrder {
		item := doc.PathItem(path)
		for _, m := range operationMethods {
			if op := operationFor(item, m); op != nil {
				sites = append(sites, operationSite{path: path, method: m, op: op})
			}
		}
	}
	if doc.Version.SupportsWebhooks() {
		for _, wh := range doc.Webhooks {
			for _, m := range operationMethods {
				if op := operationFor(wh.Item, m); op != nil {
					sites = append(sites, operationSite{path: wh.Name, method: m, webhook: true, op: op})
				}
			}
		}
	}
	return sites
}

// AssignOperationIDs computes identifiers for every operation without one.
// All explicit identifiers are claimed first, so a synthesized identifier
// never shadows an explicit one regardless of document order. Explicit
// identifiers that occur more than once are reported as duplicates.
//
// The document is not modified; call Apply on the result.
func AssignOperationIDs(doc *Document, ctx *IDContext) IDAssignment {
	var out IDAssignment
	sites := operationSites(doc)

	reported := make(map[string]bool)
	for _, s := range sites {
		id := s.op.OperationID
		if id == "" {
			continue
		}
		if !ctx.Claim(id) && !reported[id] {
			reported[id] = true
			out.Duplicates = append(out.Duplicates, id)
		}
	}

	for _, s := range sites {
		if s.op.OperationID != "" {
			continue
		}
		out.Generated = append(out.Generated, GeneratedID{
			Method:      s.method,
			Path:        s.path,
			OperationID: ctx.Unique(GenerateOperationID(s.path, s.method)),
			Webhook:     s.webhook,
			op:          s.op,
		})
	}
	return out
}
