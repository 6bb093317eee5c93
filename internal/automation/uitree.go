// File: internal/automation/uitree.go
// Description: Parses a uiautomator XML dump into an accessibility tree and
// implements selector matching over it. Nodes keep parent links so the
// executor can walk toward the nearest clickable ancestor.
package automation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/Firstp1ck/android-agent/api/schemas"
)

var reBounds = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// uiNode is one element of a parsed dump, implementing schemas.UINode.
type uiNode struct {
	text      string
	desc      string
	id        string
	className string
	clickable bool
	bounds    schemas.Rect
	parent    *uiNode
}

func (n *uiNode) Text() string         { return n.text }
func (n *uiNode) Desc() string         { return n.desc }
func (n *uiNode) ID() string           { return n.id }
func (n *uiNode) ClassName() string    { return n.className }
func (n *uiNode) Clickable() bool      { return n.clickable }
func (n *uiNode) Bounds() schemas.Rect { return n.bounds }

func (n *uiNode) Parent() schemas.UINode {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// parseTree flattens a uiautomator dump into document order.
func parseTree(xml string) ([]*uiNode, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("malformed ui dump: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty ui dump")
	}

	var nodes []*uiNode
	var walk func(el *etree.Element, parent *uiNode)
	walk = func(el *etree.Element, parent *uiNode) {
		current := parent
		if el.Tag == "node" {
			n := &uiNode{
				text:      el.SelectAttrValue("text", ""),
				desc:      el.SelectAttrValue("content-desc", ""),
				id:        el.SelectAttrValue("resource-id", ""),
				className: el.SelectAttrValue("class", ""),
				clickable: el.SelectAttrValue("clickable", "false") == "true",
				bounds:    parseBounds(el.SelectAttrValue("bounds", "")),
				parent:    parent,
			}
			nodes = append(nodes, n)
			current = n
		}
		for _, child := range el.ChildElements() {
			walk(child, current)
		}
	}
	walk(root, nil)
	return nodes, nil
}

// parseBounds reads the "[l,t][r,b]" attribute format; malformed input yields
// a zero rect rather than an error, matching the dump's own looseness.
func parseBounds(s string) schemas.Rect {
	m := reBounds.FindStringSubmatch(s)
	if m == nil {
		return schemas.Rect{}
	}
	atoi := func(v string) int {
		i, _ := strconv.Atoi(v)
		return i
	}
	return schemas.Rect{Left: atoi(m[1]), Top: atoi(m[2]), Right: atoi(m[3]), Bottom: atoi(m[4])}
}

// matchSelector reports whether the node satisfies every populated field of
// the selector. An empty selector matches nothing.
func matchSelector(n *uiNode, sel schemas.Selector) bool {
	if sel.IsEmpty() {
		return false
	}
	if sel.Text != "" && !strings.EqualFold(n.text, sel.Text) {
		return false
	}
	if sel.TextContains != "" && !containsFold(n.text, sel.TextContains) {
		return false
	}
	if sel.Desc != "" && !strings.EqualFold(n.desc, sel.Desc) {
		return false
	}
	if sel.DescContains != "" && !containsFold(n.desc, sel.DescContains) {
		return false
	}
	if sel.ID != "" && !idMatches(n.id, sel.ID) {
		return false
	}
	if sel.IDContains != "" && !containsFold(n.id, sel.IDContains) {
		return false
	}
	if sel.ClassName != "" && n.className != sel.ClassName {
		return false
	}
	return true
}

// idMatches accepts either the full "package:id/name" form or the bare name
// after the slash.
func idMatches(nodeID, want string) bool {
	if nodeID == want {
		return true
	}
	if idx := strings.LastIndex(nodeID, "/"); idx >= 0 {
		return nodeID[idx+1:] == want
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
