package ast

import "fmt"

// NodeKind classifies entries of the node map.
type NodeKind uint8

const (
	NodeNone NodeKind = iota
	NodeItem
	NodeForeignItem
	NodeMethod
	NodeVariant
	NodeStructCtor
	NodeField
)

func (k NodeKind) String() string {
	switch k {
	case NodeItem:
		return "item"
	case NodeForeignItem:
		return "foreign item"
	case NodeMethod:
		return "method"
	case NodeVariant:
		return "variant"
	case NodeStructCtor:
		return "struct ctor"
	case NodeField:
		return "field"
	default:
		return "none"
	}
}

// Node is one entry of the node map. Parent is the enclosing item for
// methods, variants, ctors and fields.
type Node struct {
	Kind    NodeKind
	Item    *Item
	Foreign *ForeignItem
	ABI     ABI
	Method  *Method
	Variant *Variant
	Field   *StructField
	Struct  *StructDef
	Parent  *Item
}

// Map indexes every definition-bearing node of a crate by NodeID.
type Map struct {
	crate *Crate
	nodes map[NodeID]Node
}

// NewMap walks the crate once; the resulting map is read-only.
func NewMap(c *Crate) *Map {
	m := &Map{crate: c, nodes: make(map[NodeID]Node, 64)}
	Walk(c, mapBuilder{m: m})
	return m
}

func (m *Map) Crate() *Crate { return m.crate }

func (m *Map) Find(id NodeID) (Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// Get panics for ids that do not name a definition.
func (m *Map) Get(id NodeID) Node {
	n, ok := m.nodes[id]
	if !ok {
		panic(fmt.Sprintf("ast: node %d not in map", id))
	}
	return n
}

// Item returns the item with the given id.
func (m *Map) Item(id NodeID) (*Item, bool) {
	n, ok := m.nodes[id]
	if !ok || n.Kind != NodeItem {
		return nil, false
	}
	return n.Item, true
}

// ForeignABI returns the ABI of the foreign block declaring id.
func (m *Map) ForeignABI(id NodeID) (ABI, bool) {
	n, ok := m.nodes[id]
	if !ok || n.Kind != NodeForeignItem {
		return ABIRust, false
	}
	return n.ABI, true
}

func (m *Map) Len() int { return len(m.nodes) }

type mapBuilder struct {
	m *Map
}

func (b mapBuilder) insert(id NodeID, n Node) {
	if id.IsValid() {
		b.m.nodes[id] = n
	}
}

func (b mapBuilder) VisitItem(it *Item) {
	b.insert(it.ID, Node{Kind: NodeItem, Item: it})
	switch k := it.Kind.(type) {
	case *ItemStruct:
		b.structDef(it, k.Def)
	case *ItemEnum:
		for _, v := range k.Def.Variants {
			b.insert(v.ID, Node{Kind: NodeVariant, Variant: v, Parent: it})
			if v.Kind == StructVariant && v.Struct != nil {
				b.structDef(it, v.Struct)
			}
		}
	case *ItemTrait:
		for _, meth := range k.Methods {
			b.insert(meth.ID, Node{Kind: NodeMethod, Method: meth, Parent: it})
		}
	case *ItemImpl:
		for _, meth := range k.Methods {
			b.insert(meth.ID, Node{Kind: NodeMethod, Method: meth, Parent: it})
		}
	}
}

func (b mapBuilder) structDef(parent *Item, sd *StructDef) {
	if sd == nil {
		return
	}
	for i := range sd.Fields {
		f := &sd.Fields[i]
		b.insert(f.ID, Node{Kind: NodeField, Field: f, Struct: sd, Parent: parent})
	}
	b.insert(sd.CtorID, Node{Kind: NodeStructCtor, Struct: sd, Parent: parent})
}

func (b mapBuilder) VisitForeignItem(fi *ForeignItem, abi ABI) {
	b.insert(fi.ID, Node{Kind: NodeForeignItem, Foreign: fi, ABI: abi})
}
