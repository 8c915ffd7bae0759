// Package sortkey implements the composite, pluggable sort key: built-in
// field descriptors, externally-provided plug-in fields, and the total
// ordering (Comparator) that combines them into one immutable SortPlan.
//
// There is no mutable global sort configuration here (the original C tool
// keeps sort_fields/reverse/key_fields as process-wide globals); a SortPlan
// is built once at startup and threaded by reference into the run buffer,
// merger, and driver.
package sortkey

import (
	"fmt"
	"net/netip"
)

// Kind distinguishes the two shapes a built-in field value can take.
type Kind int

const (
	KindInt Kind = iota
	KindAddr
)

// Value is what a built-in field accessor extracts from a record.
type Value struct {
	Kind Kind
	I    int64
	Addr netip.Addr
}

// IntValue builds an integer-kind Value.
func IntValue(i int64) Value { return Value{Kind: KindInt, I: i} }

// AddrValue builds an address-kind Value.
func AddrValue(a netip.Addr) Value { return Value{Kind: KindAddr, Addr: a} }

// Accessor reads one built-in field's value out of a fixed-width record.
type Accessor func(rec []byte) Value

// BuiltInField names one field a SortPlan can key on and how to read it.
type BuiltInField struct {
	Name string
	Get  Accessor
}

// PluginField is the capability bundle an external plug-in registers for a
// key field it contributes: extraction into the node's trailing key bytes,
// and a binary comparator over two such byte ranges.
type PluginField struct {
	Name    string
	Width   int
	Extract func(rec []byte, dst []byte) error
	Compare func(a, b []byte) (int, error)
}

// descKind tags which arm of a Descriptor is populated.
type descKind int

const (
	descBuiltIn descKind = iota
	descPlugin
)

// Descriptor is one entry of the composite key K = [k1, ..., km]. It is a
// tagged union: exactly one of BuiltIn or Plugin is meaningful, selected by
// an internal kind tag rather than by which pointer is nil, so callers never
// need to branch on "is this a plug-in" except at the leaf compare.
type Descriptor struct {
	kind    descKind
	builtIn BuiltInField
	plugin  PluginField
	// offset is the plug-in's byte offset from the start of the node (its
	// key bytes lie in the trailing region after the record); assigned by
	// NewSortPlan in declaration order. Zero and unused for built-in
	// descriptors.
	offset int
}

// BuiltIn wraps a built-in field as a key descriptor.
func BuiltIn(f BuiltInField) Descriptor {
	return Descriptor{kind: descBuiltIn, builtIn: f}
}

// Plugin wraps an external plug-in field as a key descriptor.
func Plugin(f PluginField) Descriptor {
	return Descriptor{kind: descPlugin, plugin: f}
}

// Width returns the number of trailing node bytes this descriptor occupies
// (0 for built-in descriptors, which are read live from the record).
func (d Descriptor) Width() int {
	if d.kind == descPlugin {
		return d.plugin.Width
	}
	return 0
}

// Name returns a human-readable name for diagnostics.
func (d Descriptor) Name() string {
	if d.kind == descPlugin {
		return d.plugin.Name
	}
	return d.builtIn.Name
}

// SortPlan is the immutable composite key plus the reverse flag. Build one
// with NewSortPlan and pass it by reference to the run buffer, comparator,
// and merger; nothing in this package ever mutates it after construction.
type SortPlan struct {
	Fields      []Descriptor
	Reverse     bool
	RecordWidth int
	NodeWidth   int
}

// NewSortPlan assigns plug-in byte offsets (in declaration order, packed
// immediately after the record) and fixes the resulting node width.
func NewSortPlan(fields []Descriptor, reverse bool, recordWidth int) *SortPlan {
	offset := recordWidth
	assigned := make([]Descriptor, len(fields))
	for i, d := range fields {
		if d.kind == descPlugin {
			d.offset = offset
			offset += d.plugin.Width
		}
		assigned[i] = d
	}
	return &SortPlan{
		Fields:      assigned,
		Reverse:     reverse,
		RecordWidth: recordWidth,
		NodeWidth:   offset,
	}
}

// ExtractKey runs every plug-in descriptor's Extract over rec, writing each
// one's key bytes at its assigned offset within node. Built-in fields need
// no extraction step; they are read live from the record at compare time.
func ExtractKey(plan *SortPlan, rec []byte, node []byte) error {
	for _, d := range plan.Fields {
		if d.kind != descPlugin {
			continue
		}
		dst := node[d.offset : d.offset+d.plugin.Width]
		if err := d.plugin.Extract(rec, dst); err != nil {
			return fmt.Errorf("plugin field %q: extract: %w", d.plugin.Name, err)
		}
	}
	return nil
}

// Compare applies plan.Fields left-to-right to two nodes, returning the
// first non-zero comparison, negated when plan.Reverse is set. Equal nodes
// return 0; the sort is not stable across runs.
func Compare(plan *SortPlan, a, b []byte) (int, error) {
	for _, d := range plan.Fields {
		var c int
		var err error
		if d.kind == descPlugin {
			ab := a[d.offset : d.offset+d.plugin.Width]
			bb := b[d.offset : d.offset+d.plugin.Width]
			c, err = d.plugin.Compare(ab, bb)
			if err != nil {
				return 0, fmt.Errorf("plugin field %q: compare: %w", d.plugin.Name, err)
			}
		} else {
			av := d.builtIn.Get(a[:plan.RecordWidth])
			bv := d.builtIn.Get(b[:plan.RecordWidth])
			c = compareValues(av, bv)
		}
		if c != 0 {
			if plan.Reverse {
				c = -c
			}
			return c, nil
		}
	}
	return 0, nil
}

func compareValues(a, b Value) int {
	switch a.Kind {
	case KindAddr:
		ab, bb := addrKey(a.Addr), addrKey(b.Addr)
		for i := range ab {
			if ab[i] != bb[i] {
				if ab[i] < bb[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	default:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	}
}

// addrKey zero-extends an IPv4 address to the IPv6 width so mixed-family
// inputs still have a total order, per spec.
func addrKey(a netip.Addr) [16]byte {
	if !a.IsValid() {
		return [16]byte{}
	}
	if a.Is4() {
		var k [16]byte
		v4 := a.As4()
		copy(k[12:], v4[:])
		return k
	}
	return a.As16()
}
