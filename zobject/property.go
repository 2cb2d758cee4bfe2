package zobject

import "goz3/zcore"

// propEntry describes one size/number byte and the property data that
// follows it, decoded from the single-byte Version 3 header: bits 7-5 are
// (length-1), bits 4-0 are the property number.
type propEntry struct {
	num     uint8
	length  uint8
	dataPtr uint16
}

func readPropEntry(core *zcore.Core, addr uint16) propEntry {
	b := core.ReadByte(uint32(addr))
	return propEntry{
		num:     b & 0x1f,
		length:  (b >> 5) + 1,
		dataPtr: addr + 1,
	}
}

// propertyTableStart returns the address of the first property entry,
// after the short-name length byte and the name's encoded Z-string. If the
// name length is zero, this still advances past the length byte.
func propertyTableStart(core *zcore.Core, o Object) uint16 {
	table := o.PropertyTable()
	nameLength := core.ReadByte(uint32(table))
	return table + 1 + 2*uint16(nameLength)
}

// findProperty scans o's property entries for p, returning (found,
// data-address, data length). Entries are stored in descending property-number order and
// the list terminates at a zero size/number byte.
func findProperty(core *zcore.Core, o Object, p uint8) (found bool, dataAddr uint16, length uint8) {
	addr := propertyTableStart(core, o)
	for {
		b := core.ReadByte(uint32(addr))
		if b == 0 {
			return false, 0, 0
		}
		entry := readPropEntry(core, addr)
		if entry.num == p {
			return true, entry.dataPtr, entry.length
		}
		addr = entry.dataPtr + uint16(entry.length)
	}
}

// GetProp returns property p's value on o: a word if its data length is 2,
// a zero-extended byte if 1, and the corresponding defaults-table word if
// the property is absent.
func GetProp(core *zcore.Core, o Object, p uint8) uint16 {
	found, addr, length := findProperty(core, o, p)
	if !found {
		return DefaultProperty(core, p)
	}
	if length == 1 {
		return uint16(core.ReadByte(uint32(addr)))
	}
	return core.ReadWord(uint32(addr))
}

// GetPropAddr returns the data address of property p on o, or 0 if absent.
func GetPropAddr(core *zcore.Core, o Object, p uint8) uint16 {
	found, addr, _ := findProperty(core, o, p)
	if !found {
		return 0
	}
	return addr
}

// PutProp writes value to property p on o as a word or byte, matching the
// property's declared length. Writing to an absent property is undefined
// behavior per the format and is not guarded against here.
func PutProp(core *zcore.Core, o Object, p uint8, value uint16) {
	_, addr, length := findProperty(core, o, p)
	if length == 1 {
		core.WriteByte(uint32(addr), uint8(value))
		return
	}
	core.WriteWord(uint32(addr), value)
}

// PropLength returns the length in bytes of the property whose data begins
// at dataAddr, read from the size/number byte immediately preceding it, or
// 0 if dataAddr is 0 (GETPT's "no such property" sentinel).
func PropLength(core *zcore.Core, dataAddr uint16) uint8 {
	if dataAddr == 0 {
		return 0
	}
	b := core.ReadByte(uint32(dataAddr) - 1)
	return (b >> 5) + 1
}

// NextProp returns the property number following p in o's property list,
// or the first property's number when p is 0. It returns 0 once the chain
// is exhausted.
func NextProp(core *zcore.Core, o Object, p uint8) uint8 {
	addr := propertyTableStart(core, o)
	if p == 0 {
		return readPropEntry(core, addr).num
	}

	for {
		b := core.ReadByte(uint32(addr))
		if b == 0 {
			return 0
		}
		entry := readPropEntry(core, addr)
		next := entry.dataPtr + uint16(entry.length)
		if entry.num == p {
			if core.ReadByte(uint32(next)) == 0 {
				return 0
			}
			return readPropEntry(core, next).num
		}
		addr = next
	}
}
