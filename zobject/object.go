// Package zobject implements the Version 3 object tree: 9-byte object
// records, the 32-bit attribute field, the parent/sibling/child chain, and
// property table lookup with defaults.
package zobject

import "goz3/zcore"

// Object addresses a single 9-byte record in the object table. It holds no
// cached state of its own; every accessor re-reads memory, so a caller never
// has to worry about a stale Object going out of sync with writes made
// through a different Object value for the same id.
type Object struct {
	core *zcore.Core
	base uint16
	id   uint16
}

// attrBytes is the size of the attribute field preceding the
// parent/sibling/child bytes in a Version 3 record.
const attrBytes = 4

// Get returns the Object handle for id. Object 0 is the Z-machine's "no
// object" sentinel and has no record; callers must not pass it.
func Get(core *zcore.Core, id uint16) Object {
	base := core.ObjectBase() + (id-1)*9
	return Object{core: core, base: base, id: id}
}

func (o Object) ID() uint16 { return o.id }

func (o Object) attrWord(a uint16) (addr uint32, mask uint16) {
	offset := uint32(0)
	if a&16 != 0 {
		offset = 2
	}
	return uint32(o.base) + offset, 1 << (15 - (a & 15))
}

// GetAttr reports whether attribute a is set on o.
func (o Object) GetAttr(a uint16) bool {
	addr, mask := o.attrWord(a)
	return o.core.ReadWord(addr)&mask != 0
}

// SetAttr sets attribute a on o.
func (o Object) SetAttr(a uint16) {
	addr, mask := o.attrWord(a)
	o.core.WriteWord(addr, o.core.ReadWord(addr)|mask)
}

// ClearAttr clears attribute a on o.
func (o Object) ClearAttr(a uint16) {
	addr, mask := o.attrWord(a)
	o.core.WriteWord(addr, o.core.ReadWord(addr)&^mask)
}

func (o Object) Parent() uint16  { return uint16(o.core.ReadByte(uint32(o.base) + attrBytes)) }
func (o Object) Sibling() uint16 { return uint16(o.core.ReadByte(uint32(o.base) + attrBytes + 1)) }
func (o Object) Child() uint16   { return uint16(o.core.ReadByte(uint32(o.base) + attrBytes + 2)) }

func (o Object) setParent(p uint16)  { o.core.WriteByte(uint32(o.base)+attrBytes, uint8(p)) }
func (o Object) setSibling(s uint16) { o.core.WriteByte(uint32(o.base)+attrBytes+1, uint8(s)) }
func (o Object) setChild(c uint16)   { o.core.WriteByte(uint32(o.base)+attrBytes+2, uint8(c)) }

// PropertyTable returns the address of o's property table: the short-name
// length byte followed by the encoded short name, followed by the property
// entries.
func (o Object) PropertyTable() uint16 {
	return o.core.ReadWord(uint32(o.base) + attrBytes + 3)
}

// Move detaches x from its current parent's child chain, then, unless y is
// 0 ("nowhere"), makes x the first child of y.
func Move(core *zcore.Core, x, y uint16) {
	xo := Get(core, x)
	if p := xo.Parent(); p != 0 {
		detach(core, Get(core, p), x)
	}

	if y == 0 {
		xo.setSibling(0)
		xo.setParent(0)
		return
	}

	yo := Get(core, y)
	xo.setSibling(yo.Child())
	yo.setChild(x)
	xo.setParent(y)
}

// detach removes x from parent's child chain, relinking around it.
func detach(core *zcore.Core, parent Object, x uint16) {
	if parent.Child() == x {
		parent.setChild(Get(core, x).Sibling())
		return
	}
	for sib := parent.Child(); sib != 0; {
		sibObj := Get(core, sib)
		if sibObj.Sibling() == x {
			sibObj.setSibling(Get(core, x).Sibling())
			return
		}
		sib = sibObj.Sibling()
	}
}

// DefaultProperty returns the default word value for property p (1-based)
// from the property-defaults table.
func DefaultProperty(core *zcore.Core, p uint8) uint16 {
	return core.ReadWord(uint32(core.DefPropBase()) + 2*uint32(p-1))
}
