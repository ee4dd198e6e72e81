package openapi2mcp

import (
	"math"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// mediaTypeOrderKey is an extension the loader adds to every media type
// object so the declared order of a content map survives decoding.
const mediaTypeOrderKey = "x-mcp-media-order"

// Subtrees that hold schemas or literal values rather than content maps.
var skipOrderSubtrees = map[string]bool{
	"schema":   true,
	"schemas":  true,
	"example":  true,
	"examples": true,
	"default":  true,
	"enum":     true,
	"const":    true,
}

// annotateMediaTypeOrder records the position of each entry of every
// `content` map as mediaTypeOrderKey on the media type object.
func annotateMediaTypeOrder(node *yaml.Node) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.SequenceNode:
		for _, child := range node.Content {
			annotateMediaTypeOrder(child)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i].Value, node.Content[i+1]
			if skipOrderSubtrees[key] {
				continue
			}
			if key == "content" && value.Kind == yaml.MappingNode {
				for j := 0; j+1 < len(value.Content); j += 2 {
					if media := value.Content[j+1]; media.Kind == yaml.MappingNode {
						setOrder(media, j/2)
					}
				}
			}
			annotateMediaTypeOrder(value)
		}
	}
}

func setOrder(media *yaml.Node, pos int) {
	for i := 0; i+1 < len(media.Content); i += 2 {
		if media.Content[i].Value == mediaTypeOrderKey {
			return
		}
	}
	media.Content = append(media.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: mediaTypeOrderKey},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: cast.ToString(pos)},
	)
}

// preferredMediaType picks the media type a request body is compiled and
// encoded with: application/json when declared, otherwise the first declared.
func preferredMediaType(content openapi3.Content) string {
	if _, ok := content[jsonMediaType]; ok {
		return jsonMediaType
	}
	return firstMediaType(content)
}

// firstMediaType returns the first declared media type of content. Media
// types without a recorded position (documents built in code) sort after
// the recorded ones, lexically.
func firstMediaType(content openapi3.Content) string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := declaredPosition(content[keys[i]]), declaredPosition(content[keys[j]])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func declaredPosition(media *openapi3.MediaType) int {
	if media == nil {
		return math.MaxInt
	}
	v, ok := media.Extensions[mediaTypeOrderKey]
	if !ok {
		return math.MaxInt
	}
	pos, err := cast.ToIntE(v)
	if err != nil {
		return math.MaxInt
	}
	return pos
}
