package vdom

import (
	"maps"
	"slices"
	"strings"
)

// Attrs maps attribute names to string values.
type Attrs map[string]string

// Get returns the value of key and whether it is present.
func (a Attrs) Get(key string) (string, bool) {
	v, ok := a[key]
	return v, ok
}

// Clone returns a copy of the attributes. A nil or empty map clones to nil.
func (a Attrs) Clone() Attrs {
	if len(a) == 0 {
		return nil
	}
	return maps.Clone(a)
}

// Keys returns the attribute names in sorted order.
func (a Attrs) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Equal reports whether both maps hold the same keys with the same values.
// A nil map equals an empty one.
func (a Attrs) Equal(b Attrs) bool {
	return maps.Equal(a, b)
}

// AttrValue is the new state of one attribute. Present is false when the
// attribute was removed.
type AttrValue struct {
	Value   string
	Present bool
}

// Set returns a present AttrValue.
func Set(v string) AttrValue {
	return AttrValue{Value: v, Present: true}
}

// Removed is the AttrValue of a deleted attribute.
var Removed = AttrValue{}

// String returns the value, or "<removed>".
func (v AttrValue) String() string {
	if !v.Present {
		return "<removed>"
	}
	return v.Value
}

// AttrDelta holds the attributes that changed between two nodes.
type AttrDelta map[string]AttrValue

// Keys returns the changed attribute names in sorted order.
func (d AttrDelta) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// ApplyTo returns a copy of a with the delta applied.
func (d AttrDelta) ApplyTo(a Attrs) Attrs {
	out := maps.Clone(a)
	if out == nil {
		out = Attrs{}
	}
	for k, v := range d {
		if v.Present {
			out[k] = v.Value
		} else {
			delete(out, k)
		}
	}
	return out
}

// String renders the delta as "k=v k2=<removed>" in key order.
func (d AttrDelta) String() string {
	var b strings.Builder
	for i, k := range d.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(d[k].String())
	}
	return b.String()
}

// diffAttrs compares the union of both key sets. Values are compared as
// exact strings and an absent key differs from every present value.
func diffAttrs(prev, next Attrs) AttrDelta {
	var delta AttrDelta
	for k, pv := range prev {
		nv, ok := next[k]
		if ok && nv == pv {
			continue
		}
		if delta == nil {
			delta = AttrDelta{}
		}
		if ok {
			delta[k] = Set(nv)
		} else {
			delta[k] = Removed
		}
	}
	for k, nv := range next {
		if _, ok := prev[k]; ok {
			continue
		}
		if delta == nil {
			delta = AttrDelta{}
		}
		delta[k] = Set(nv)
	}
	return delta
}
