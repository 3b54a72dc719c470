package pen

import (
	"github.com/TheBitDrifter/mask"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

// compositeNode matches categories by their tags and, optionally, by the
// components their tables carry.
type compositeNode struct {
	op         Operation
	children   []QueryNode
	tags       []Tag
	components []Component
}

type categoryNode struct {
	categories map[Category]struct{}
}

type query struct {
	root QueryNode
}

func newQuery() Query {
	return &query{}
}

func newCompositeNode(op Operation, tags []Tag, components []Component) *compositeNode {
	return &compositeNode{
		op:         op,
		children:   make([]QueryNode, 0),
		tags:       tags,
		components: components,
	}
}

// masks builds the node's tag and component masks at evaluation time.
func (n *compositeNode) masks(storage Storage) (mask.Mask, mask.Mask) {
	var tagBits, compBits mask.Mask
	for _, t := range n.tags {
		tagBits.Mark(t.bit)
	}
	for _, c := range n.components {
		compBits.Mark(storage.RowIndexFor(c))
	}
	return tagBits, compBits
}

func (n *compositeNode) Evaluate(g Group, storage Storage) bool {
	tagBits, compBits := n.masks(storage)
	groupTags := g.TagMask()
	groupComps := g.ComponentMask()

	switch n.op {
	case OpAnd:
		if !groupTags.ContainsAll(tagBits) || !groupComps.ContainsAll(compBits) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(g, storage) {
				return false
			}
		}
		return true

	case OpOr:
		if (len(n.tags) > 0 && groupTags.ContainsAny(tagBits)) ||
			(len(n.components) > 0 && groupComps.ContainsAny(compBits)) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(g, storage) {
				return true
			}
		}
		return false

	case OpNot:
		for _, child := range n.children {
			if child.Evaluate(g, storage) {
				return false
			}
		}
		// An empty mask excludes nothing.
		return !groupTags.ContainsAny(tagBits) && !groupComps.ContainsAny(compBits)
	}
	return false
}

func (n *categoryNode) Evaluate(g Group, storage Storage) bool {
	_, ok := n.categories[g.ID()]
	return ok
}

func (q *query) And(items ...interface{}) QueryNode {
	return q.node(OpAnd, items)
}

func (q *query) Or(items ...interface{}) QueryNode {
	return q.node(OpOr, items)
}

func (q *query) Not(items ...interface{}) QueryNode {
	return q.node(OpNot, items)
}

func (q *query) node(op Operation, items []interface{}) QueryNode {
	tags, components, children := q.processItems(items...)
	node := newCompositeNode(op, tags, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) processItems(items ...interface{}) ([]Tag, []Component, []QueryNode) {
	tags := make([]Tag, 0)
	components := make([]Component, 0)
	children := make([]QueryNode, 0)

	for _, item := range items {
		switch v := item.(type) {
		case Tag:
			tags = append(tags, v)
		case []Tag:
			tags = append(tags, v...)
		case Category:
			children = append(children, &categoryNode{categories: map[Category]struct{}{v: {}}})
		case []Category:
			node := &categoryNode{categories: make(map[Category]struct{}, len(v))}
			for _, cat := range v {
				node.categories[cat] = struct{}{}
			}
			children = append(children, node)
		case Component:
			components = append(components, v)
		case []Component:
			components = append(components, v...)
		case QueryNode:
			children = append(children, v)
		}
	}

	return tags, components, children
}

func (q *query) Evaluate(g Group, storage Storage) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(g, storage)
}
