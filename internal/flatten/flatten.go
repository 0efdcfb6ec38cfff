// Package flatten turns a nested tree into flat records according to a path
// mapping. Paths that pass through lists fan out: one record is produced per
// combination of list elements.
package flatten

import (
	"iter"

	"github.com/rpattn/projectanalysis/internal/domain"
	"github.com/rpattn/projectanalysis/pkg/dotpath"
)

// node is one path segment shared by every mapped path running through it.
// Columns whose paths share a list prefix share that list, so they are zipped
// rather than crossed.
type node struct {
	segment  string
	columns  []int // columns whose path ends here
	subtree  []int // columns at or below this node
	children []*node
	index    map[string]*node
}

func newNode(segment string) *node {
	return &node{segment: segment, index: map[string]*node{}}
}

func (n *node) child(segment string) *node {
	if existing, ok := n.index[segment]; ok {
		return existing
	}
	created := newNode(segment)
	n.index[segment] = created
	n.children = append(n.children, created)
	return created
}

func compile(mapping domain.PathMapping) *node {
	root := newNode("")
	for column, entry := range mapping.Entries() {
		current := root
		current.subtree = append(current.subtree, column)
		for _, segment := range dotpath.Components(entry.Path) {
			current = current.child(segment)
			current.subtree = append(current.subtree, column)
		}
		current.columns = append(current.columns, column)
	}
	return root
}

// Flatten returns the flat records of tree under mapping.
//
// A root list contributes each element as a root node and a null root yields
// nothing. Sibling list dimensions are combined by Cartesian product, the
// dimension introduced last by the mapping varying fastest. An empty list
// below the root yields a single record with nulls in the columns under it.
// Absent fields resolve to null.
//
// The sequence is restartable: each range walks the tree again.
func Flatten(tree domain.Value, mapping domain.PathMapping) iter.Seq[domain.Record] {
	root := compile(mapping)
	columns := mapping.Columns()
	return func(yield func(domain.Record) bool) {
		w := &walker{
			columns: columns,
			row:     make([]domain.Value, len(columns)),
			yield:   yield,
		}
		w.walkRoot(root, tree)
	}
}

// Collect materializes Flatten into a record set.
func Collect(tree domain.Value, mapping domain.PathMapping) domain.RecordSet {
	set := domain.RecordSet{Columns: mapping.Columns(), Records: []domain.Record{}}
	for record := range Flatten(tree, mapping) {
		set.Records = append(set.Records, record)
	}
	return set
}

type walker struct {
	columns []string
	row     []domain.Value
	yield   func(domain.Record) bool
}

func (w *walker) emit() bool {
	values := make([]domain.Value, len(w.row))
	copy(values, w.row)
	return w.yield(domain.NewRecord(w.columns, values))
}

func (w *walker) walkRoot(root *node, tree domain.Value) {
	switch tree.Kind() {
	case domain.KindNull:
		return
	case domain.KindList:
		for _, item := range tree.Items() {
			if !w.walk(root, item, w.emit) {
				return
			}
		}
	default:
		w.walk(root, tree, w.emit)
	}
}

// walk assigns every column under n from v and calls next once per
// combination. It returns false once the consumer stops.
func (w *walker) walk(n *node, v domain.Value, next func() bool) bool {
	if v.Kind() == domain.KindList {
		items := v.Items()
		if len(items) == 0 {
			for _, column := range n.subtree {
				w.row[column] = domain.Null
			}
			return next()
		}
		for _, item := range items {
			if !w.walk(n, item, next) {
				return false
			}
		}
		return true
	}
	for _, column := range n.columns {
		w.row[column] = v
	}
	return w.walkChildren(n, 0, v, next)
}

func (w *walker) walkChildren(n *node, i int, v domain.Value, next func() bool) bool {
	if i == len(n.children) {
		return next()
	}
	child := n.children[i]
	field, _ := v.Field(child.segment)
	return w.walk(child, field, func() bool {
		return w.walkChildren(n, i+1, v, next)
	})
}
