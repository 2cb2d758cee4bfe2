package zobject_test

import (
	"testing"

	"goz3/zcore"
	"goz3/zobject"
)

// newTestCore builds a minimal V3 image with header(10) (object table base)
// set so that defprop and the 9-byte object records land at fixed, easy to
// compute offsets.
func newTestCore(t *testing.T, numObjects int) *zcore.Core {
	t.Helper()
	rom := make([]byte, 512)
	rom[0] = 3

	const objectTableBase = 0x40
	rom[0x0a] = byte(objectTableBase >> 8)
	rom[0x0b] = byte(objectTableBase)

	core, err := zcore.Load(rom, 0)
	if err != nil {
		t.Fatalf("zcore.Load: %v", err)
	}
	return core
}

// setPropertyTable writes a minimal property table (zero-length short name,
// then the supplied raw entry bytes, then a terminator) at addr, and points
// o's property-table pointer at it.
func setPropertyTable(t *testing.T, core *zcore.Core, o zobject.Object, addr uint16, entries []byte) {
	t.Helper()
	core.WriteByte(uint32(addr), 0) // short name length 0
	for i, b := range entries {
		core.WriteByte(uint32(addr)+1+uint32(i), b)
	}
	core.WriteByte(uint32(addr)+1+uint32(len(entries)), 0)
	writePropertyPointer(core, o, addr)
}

func writePropertyPointer(core *zcore.Core, o zobject.Object, addr uint16) {
	core.WriteWord(uint32(objectBase(core, o.ID()))+7, addr)
}

func objectBase(core *zcore.Core, id uint16) uint16 {
	return core.ObjectBase() + (id-1)*9
}

func TestAttributes(t *testing.T) {
	core := newTestCore(t, 1)
	o := zobject.Get(core, 1)

	if o.GetAttr(3) {
		t.Fatalf("attribute 3 should start clear")
	}
	o.SetAttr(3)
	if !o.GetAttr(3) {
		t.Fatalf("attribute 3 should be set")
	}
	o.SetAttr(17) // second word, bit 17&15=1
	if !o.GetAttr(17) {
		t.Fatalf("attribute 17 should be set")
	}
	o.ClearAttr(3)
	if o.GetAttr(3) {
		t.Fatalf("attribute 3 should be clear after ClearAttr")
	}
	if !o.GetAttr(17) {
		t.Fatalf("attribute 17 should remain set")
	}
}

func TestMoveInsertsAtHeadAndDetaches(t *testing.T) {
	core := newTestCore(t, 4)
	a, b, c, d := zobject.Get(core, 1), zobject.Get(core, 2), zobject.Get(core, 3), zobject.Get(core, 4)
	_ = d

	// Tree: A { C { D }, B } (each Move inserts at the head, so C precedes B)
	zobject.Move(core, b.ID(), a.ID())
	zobject.Move(core, c.ID(), a.ID())
	zobject.Move(core, d.ID(), c.ID())

	if a.Child() != c.ID() {
		t.Fatalf("A's first child should be C (most recent insert), got %d", a.Child())
	}

	// move(D, A) -> A { D, C, B }
	zobject.Move(core, d.ID(), a.ID())
	if a.Child() != d.ID() {
		t.Fatalf("A's first child should be D, got %d", a.Child())
	}
	if d.Sibling() != c.ID() {
		t.Fatalf("D's sibling should be C, got %d", d.Sibling())
	}

	// move(B, 0) -> A { D, C }, parent(B) == 0, sibling(B) == 0
	zobject.Move(core, b.ID(), 0)
	if b.Parent() != 0 || b.Sibling() != 0 {
		t.Fatalf("B should be fully detached, parent=%d sibling=%d", b.Parent(), b.Sibling())
	}
	if c.Sibling() != 0 {
		t.Fatalf("C's sibling should now be 0 (B was removed), got %d", c.Sibling())
	}
}

func TestPropertyGetSetAndDefault(t *testing.T) {
	core := newTestCore(t, 1)
	o := zobject.Get(core, 1)

	// property 5, length 2 (size byte = (2-1)<<5 | 5 = 0x25), value 0x1234
	// property 3, length 1 (size byte = (1-1)<<5 | 3 = 0x03), value 0x42
	entries := []byte{0x25, 0x12, 0x34, 0x03, 0x42}
	setPropertyTable(t, core, o, 0x100, entries)

	if got := zobject.GetProp(core, o, 5); got != 0x1234 {
		t.Fatalf("GetProp(5) = %#x, want 0x1234", got)
	}
	if got := zobject.GetProp(core, o, 3); got != 0x42 {
		t.Fatalf("GetProp(3) = %#x, want 0x42", got)
	}

	zobject.PutProp(core, o, 3, 0x55)
	if got := zobject.GetProp(core, o, 3); got != 0x55 {
		t.Fatalf("GetProp(3) after PutProp = %#x, want 0x55", got)
	}

	// property 9 is absent; default word lives at defprop + 2*(9-1)
	core.WriteWord(uint32(core.DefPropBase())+2*8, 0x9999)
	if got := zobject.GetProp(core, o, 9); got != 0x9999 {
		t.Fatalf("GetProp(absent) = %#x, want default 0x9999", got)
	}
}

func TestNextProp(t *testing.T) {
	core := newTestCore(t, 1)
	o := zobject.Get(core, 1)

	entries := []byte{0x25, 0x12, 0x34, 0x03, 0x42}
	setPropertyTable(t, core, o, 0x100, entries)

	if got := zobject.NextProp(core, o, 0); got != 5 {
		t.Fatalf("NextProp(0) = %d, want 5", got)
	}
	if got := zobject.NextProp(core, o, 5); got != 3 {
		t.Fatalf("NextProp(5) = %d, want 3", got)
	}
	if got := zobject.NextProp(core, o, 3); got != 0 {
		t.Fatalf("NextProp(3) = %d, want 0", got)
	}
}
