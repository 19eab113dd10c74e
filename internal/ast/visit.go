package ast

// Visitor receives items in source order; module contents follow the module item.
type Visitor interface {
	VisitItem(it *Item)
	VisitForeignItem(fi *ForeignItem, abi ABI)
}

// Walk visits every item of the crate, descending into modules and foreign blocks.
func Walk(c *Crate, v Visitor) {
	if c == nil {
		return
	}
	walkItems(c.Module.Items, v)
}

func walkItems(items []*Item, v Visitor) {
	for _, it := range items {
		v.VisitItem(it)
		switch k := it.Kind.(type) {
		case *ItemMod:
			walkItems(k.Items, v)
		case *ItemForeignMod:
			for _, fi := range k.Items {
				v.VisitForeignItem(fi, k.ABI)
			}
		}
	}
}

// Unit is either an item or a foreign item with its block ABI.
type Unit struct {
	Item    *Item
	Foreign *ForeignItem
	ABI     ABI
}

// Units flattens the crate into the order Walk would visit it.
func Units(c *Crate) []Unit {
	var out unitCollector
	Walk(c, &out)
	return out.units
}

type unitCollector struct {
	units []Unit
}

func (u *unitCollector) VisitItem(it *Item) {
	u.units = append(u.units, Unit{Item: it})
}

func (u *unitCollector) VisitForeignItem(fi *ForeignItem, abi ABI) {
	u.units = append(u.units, Unit{Foreign: fi, ABI: abi})
}
