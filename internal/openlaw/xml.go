package openlaw

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// node is a minimal element tree used to turn XML responses into the same
// item maps the JSON decoder produces.
type node struct {
	name     string
	text     strings.Builder
	children []*node
}

func parseXML(body []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	// The service declares UTF-8 but some mirrors answer with EUC-KR headers;
	// the payload itself is passed through untouched.
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	dec.Strict = false

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	return root, nil
}

// toItem flattens the direct children of n. Leaf children become strings,
// nested children become maps. Repeated names keep the first occurrence.
func (n *node) toItem() Item {
	item := make(Item, len(n.children))
	for _, c := range n.children {
		if _, seen := item[c.name]; seen {
			continue
		}
		if len(c.children) == 0 {
			item[c.name] = strings.TrimSpace(c.text.String())
		} else {
			item[c.name] = c.toItem()
		}
	}
	return item
}

// xmlRows returns every element named after the target (e.g. <prec>) found
// below the root.
func xmlRows(body []byte, target string) ([]Item, error) {
	root, err := parseXML(body)
	if err != nil {
		return nil, err
	}
	var rows []Item
	var walk func(*node)
	walk = func(n *node) {
		for _, c := range n.children {
			if c.name == target {
				rows = append(rows, c.toItem())
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return rows, nil
}

// xmlRecord returns the detail record. The root element is the record
// itself unless it wraps a single element child.
func xmlRecord(body []byte) (Item, error) {
	root, err := parseXML(body)
	if err != nil {
		return nil, err
	}
	if len(root.children) == 0 {
		return nil, fmt.Errorf("empty <%s> element", root.name)
	}
	if len(root.children) == 1 && len(root.children[0].children) > 0 {
		return root.children[0].toItem(), nil
	}
	return root.toItem(), nil
}
