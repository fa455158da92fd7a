package xmlutils

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/xmlpath.v2"
)

var (
	compiledMu sync.Mutex
	compiled   = map[string]*xmlpath.Path{}
)

// ParseXML parses a well-formed XML document.
func ParseXML(r io.Reader) (*xmlpath.Node, error) {
	root, err := xmlpath.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return root, nil
}

// Compile compiles xpath once and caches the result.
func Compile(xpath string) (*xmlpath.Path, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if p, ok := compiled[xpath]; ok {
		return p, nil
	}
	p, err := xmlpath.Compile(xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath %q: %w", xpath, err)
	}
	compiled[xpath] = p
	return p, nil
}

// ExtractFromXML returns the string value of every node matched by xpath.
func ExtractFromXML(root *xmlpath.Node, xpath string) ([]string, error) {
	nodes, err := Nodes(root, xpath)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, n.String())
	}
	return values, nil
}

// Nodes returns every node matched by xpath.
func Nodes(root *xmlpath.Node, xpath string) ([]*xmlpath.Node, error) {
	path, err := Compile(xpath)
	if err != nil {
		return nil, err
	}
	var nodes []*xmlpath.Node
	iter := path.Iter(root)
	for iter.Next() {
		nodes = append(nodes, iter.Node())
	}
	return nodes, nil
}

// Exists reports whether xpath matches anything under root.
func Exists(root *xmlpath.Node, xpath string) bool {
	path, err := Compile(xpath)
	if err != nil {
		return false
	}
	return path.Exists(root)
}

// FirstValue returns the cleaned text of the first expression that yields a non-empty
// value.
func FirstValue(node *xmlpath.Node, xpaths ...string) string {
	for _, xpath := range xpaths {
		path, err := Compile(xpath)
		if err != nil {
			continue
		}
		if v, ok := path.String(node); ok {
			if v = CleanText(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// CleanText collapses the whitespace and newlines of XML text content.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
