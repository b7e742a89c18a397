package backlog

import (
	"fmt"
	"sort"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Index provides key-based lookup over a work-item snapshot, including
// parent/child resolution. Parent references on work items are weak keys;
// the index is the only way they are resolved, so a dangling parent is
// detected here rather than surfacing as a nil pointer later.
//
// An Index is built once per planning run and is read-only afterwards.
type Index struct {
	byKey    map[string]WorkItem
	children map[string][]string
	order    []string
}

// NewIndex builds an Index from the item list. It validates every item,
// rejects duplicate keys, and records parent->children linkage. A parent
// key that does not resolve to an item in scope is an error: planning
// over a partial hierarchy silently mis-inherits dependencies.
func NewIndex(items []WorkItem) (*Index, error) {
	idx := &Index{
		byKey:    make(map[string]WorkItem, len(items)),
		children: make(map[string][]string),
		order:    make([]string, 0, len(items)),
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		if _, exists := idx.byKey[item.Key]; exists {
			return nil, types.NewFatalError(types.DUPLICATE_ITEM_KEY,
				fmt.Sprintf("work item key %s appears more than once", item.Key)).WithItem(item.Key)
		}
		idx.byKey[item.Key] = item
		idx.order = append(idx.order, item.Key)
	}

	for _, item := range items {
		if item.Parent == "" {
			continue
		}
		if _, ok := idx.byKey[item.Parent]; !ok {
			return nil, types.NewFatalError(types.MISSING_WORK_ITEM,
				fmt.Sprintf("work item %s references parent %s which is not in scope",
					item.Key, item.Parent)).WithItem(item.Key)
		}
		idx.children[item.Parent] = append(idx.children[item.Parent], item.Key)
	}

	for parent := range idx.children {
		sort.Strings(idx.children[parent])
	}

	return idx, nil
}

// Get returns the item for key.
func (x *Index) Get(key string) (WorkItem, bool) {
	item, ok := x.byKey[key]
	return item, ok
}

// Contains reports whether key is in scope.
func (x *Index) Contains(key string) bool {
	_, ok := x.byKey[key]
	return ok
}

// Children returns the keys of the direct children of parent, sorted.
func (x *Index) Children(parent string) []string {
	return x.children[parent]
}

// Descendants returns every key transitively below parent, depth-first.
// maxDepth bounds the traversal; 0 means unbounded.
func (x *Index) Descendants(parent string, maxDepth int) []string {
	var out []string
	var walk func(key string, depth int)
	walk = func(key string, depth int) {
		if maxDepth > 0 && depth > maxDepth {
			return
		}
		for _, child := range x.children[key] {
			out = append(out, child)
			walk(child, depth+1)
		}
	}
	walk(parent, 1)
	return out
}

// Keys returns all keys in input order.
func (x *Index) Keys() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Items returns all items in input order.
func (x *Index) Items() []WorkItem {
	out := make([]WorkItem, 0, len(x.order))
	for _, key := range x.order {
		out = append(out, x.byKey[key])
	}
	return out
}

// Schedulable returns the stories and enablers in input order. These are
// the only items the allocator places; epics and features are containers.
func (x *Index) Schedulable() []WorkItem {
	var out []WorkItem
	for _, key := range x.order {
		if item := x.byKey[key]; item.Kind.IsSchedulable() {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of items in scope.
func (x *Index) Len() int {
	return len(x.order)
}
