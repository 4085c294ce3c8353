package vdom

import (
	"iter"
	"maps"
	"slices"
)

// HandleMap associates mounted nodes with their rendered handles. An entry
// exists exactly while its node is mounted.
type HandleMap[H any] struct {
	m map[NodeID]H
}

// NewHandleMap returns an empty HandleMap.
func NewHandleMap[H any]() *HandleMap[H] {
	return &HandleMap[H]{m: make(map[NodeID]H)}
}

// Get returns the handle of id.
func (hm *HandleMap[H]) Get(id NodeID) (H, bool) {
	h, ok := hm.m[id]
	return h, ok
}

// Has reports whether id is mounted.
func (hm *HandleMap[H]) Has(id NodeID) bool {
	_, ok := hm.m[id]
	return ok
}

// Len returns the number of mounted nodes.
func (hm *HandleMap[H]) Len() int {
	return len(hm.m)
}

// Keys returns the mounted node IDs in ascending order.
func (hm *HandleMap[H]) Keys() []NodeID {
	return slices.Sorted(maps.Keys(hm.m))
}

// All iterates over every entry in unspecified order.
func (hm *HandleMap[H]) All() iter.Seq2[NodeID, H] {
	return maps.All(hm.m)
}

func (hm *HandleMap[H]) set(id NodeID, h H) {
	hm.m[id] = h
}

func (hm *HandleMap[H]) delete(id NodeID) {
	delete(hm.m, id)
}

// rekey moves the handle of from to to.
func (hm *HandleMap[H]) rekey(from, to NodeID) {
	if from == to {
		return
	}
	if h, ok := hm.m[from]; ok {
		delete(hm.m, from)
		hm.m[to] = h
	}
}

func (hm *HandleMap[H]) clear() {
	clear(hm.m)
}
