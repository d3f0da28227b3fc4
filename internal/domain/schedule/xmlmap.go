package schedule

import (
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"
)

// XMLToMap parses an XML document into nested maps, one map per element.
// Values are kept as strings; no numeric casting happens at this layer.
func XMLToMap(data []byte) (map[string]interface{}, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return map[string]interface{}(m), nil
}

// node wraps one element of a parsed document so the rest of the importer
// never touches untyped values. The source documents write a repeated
// element as a list only when it actually repeats, so every accessor
// normalizes the single-occurrence and multi-occurrence shapes.
type node map[string]interface{}

func asNode(v interface{}) node {
	if m, ok := v.(map[string]interface{}); ok {
		return node(m)
	}
	return nil
}

// child returns the named sub-element, or nil when it is absent or a leaf.
func (n node) child(key string) node {
	if n == nil {
		return nil
	}
	return asNode(n[key])
}

// list returns the named sub-elements as a slice, treating a single
// occurrence as a one-element list.
func (n node) list(key string) []node {
	if n == nil {
		return nil
	}
	switch v := n[key].(type) {
	case []interface{}:
		out := make([]node, 0, len(v))
		for _, item := range v {
			if c := asNode(item); c != nil {
				out = append(out, c)
			}
		}
		return out
	case map[string]interface{}:
		return []node{node(v)}
	default:
		return nil
	}
}

// str returns the trimmed text of a leaf sub-element, or "" when absent.
func (n node) str(key string) string {
	if n == nil {
		return ""
	}
	if s, ok := n[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// strList returns a repeated leaf sub-element's values, single occurrence
// included.
func (n node) strList(key string) []string {
	if n == nil {
		return nil
	}
	switch v := n[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	default:
		return nil
	}
}
