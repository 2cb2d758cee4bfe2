// Package zcore implements the memory image for a Version 3 Z-machine
// story file: the immutable initial image, the mutable working copy, and
// the byte/word accessors every other package builds on.
package zcore

import (
	"encoding/binary"
	"fmt"
)

// Header byte offsets, per the Version 3 story file format.
const (
	offVersion      = 0x00
	offFlags1       = 0x01
	offZorkID       = 0x02
	offPC           = 0x06
	offDictionary   = 0x08
	offObjectTable  = 0x0a
	offGlobals      = 0x0c
	offPurbot       = 0x0e
	offFlagsShadow  = 0x10
	offSerial       = 0x12
	offAbbreviation = 0x18
	offPackedLen    = 0x1a
	offChecksum     = 0x1c
)

// Flags1 bits. Bit 0 and bit 1 are host-configured before Load; the
// remaining bits are written by Init to advertise what this interpreter
// supports.
const (
	Flag1ByteSwap  = 1 << 0
	Flag1StatusHMS = 1 << 1
	Flag1Tandy     = 1 << 3
	Flag1NoStatus  = 1 << 4
	Flag1SplitOK   = 1 << 5
)

// VersionError reports that a story file is not the Version 3 this
// interpreter supports.
type VersionError struct {
	Got uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported story file version %d, only version 3 is supported", e.Got)
}

// Core owns the story file's memory: an immutable initial image and a
// mutable working copy of identical length. Every 16-bit accessor routes
// through order, which is selected once at Load time from the host's
// byte-swap flag.
type Core struct {
	initial []byte
	bytes   []byte
	order   binary.ByteOrder

	purbot   uint16
	checksum uint16
}

// Load validates the story file and builds a Core around it. hostFlags
// carries the two host-configured bits of header byte 1 (byte-swap and
// the hours/minutes status-line flag); every other bit is overwritten by
// Init.
func Load(rom []byte, hostFlags uint8) (*Core, error) {
	if len(rom) < 64 {
		return nil, fmt.Errorf("zcore: story file too short (%d bytes)", len(rom))
	}
	if rom[offVersion] != 3 {
		return nil, &VersionError{Got: rom[offVersion]}
	}

	initial := make([]byte, len(rom))
	copy(initial, rom)

	working := make([]byte, len(rom))
	copy(working, rom)

	order := binary.ByteOrder(binary.BigEndian)
	if hostFlags&Flag1ByteSwap != 0 {
		order = binary.LittleEndian
	}

	c := &Core{
		initial: initial,
		bytes:   working,
		order:   order,
	}

	c.bytes[offFlags1] = hostFlags & (Flag1ByteSwap | Flag1StatusHMS)
	c.purbot = c.wordAt(c.bytes, offPurbot)
	c.checksum = c.wordAt(c.initial, offChecksum)

	return c, nil
}

// Init (re)applies the capability bits this interpreter advertises and
// snapshots the resulting flags word to offset 16, per the header
// contract. It's called once on load and again on RESTART.
func (c *Core) Init(isTandy bool) {
	c.bytes[offFlags1] &^= Flag1Tandy | Flag1NoStatus | Flag1SplitOK
	c.bytes[offFlags1] |= Flag1SplitOK
	if isTandy {
		c.bytes[offFlags1] |= Flag1Tandy
	}
	c.WriteWord(offFlagsShadow, uint16(c.bytes[offFlags1]))
}

// Scripting reports bit 0 of the flags-shadow word at offset 16 — the
// "header bit-0 shadow" that PRINT's host callout uses to indicate
// transcript-on.
func (c *Core) Scripting() bool {
	return c.ReadWord(offFlagsShadow)&1 != 0
}

// FixedPitch reports bit 1 of the flags-shadow word at offset 16, the
// mode-flags bit the highlight callout watches for transitions.
func (c *Core) FixedPitch() bool {
	return c.ReadWord(offFlagsShadow)&2 != 0
}

func (c *Core) wordAt(buf []byte, addr uint16) uint16 {
	return c.order.Uint16(buf[addr : addr+2])
}

// ReadByte returns the byte at address, wrapped modulo the working image
// length as Z-machine address arithmetic requires.
func (c *Core) ReadByte(address uint32) uint8 {
	return c.bytes[uint16(address)%uint16(len(c.bytes))]
}

// WriteByte stores a byte at address in the working image.
func (c *Core) WriteByte(address uint32, value uint8) {
	c.bytes[uint16(address)%uint16(len(c.bytes))] = value
}

// ReadWord returns the 16-bit value at address, honoring the byte-swap
// flag selected at Load.
func (c *Core) ReadWord(address uint32) uint16 {
	a := uint16(address) % uint16(len(c.bytes))
	return c.order.Uint16(c.bytes[a : a+2])
}

// WriteWord stores a 16-bit value at address, honoring the byte-swap flag.
func (c *Core) WriteWord(address uint32, value uint16) {
	a := uint16(address) % uint16(len(c.bytes))
	c.order.PutUint16(c.bytes[a:a+2], value)
}

// Slice exposes a read-only view of the working image between two byte
// addresses, for callers that need to scan runs of bytes directly.
func (c *Core) Slice(start, end uint32) []byte {
	return c.bytes[start:end]
}

// Bytes returns the full mutable working image. Used by the save/restore
// codec, which copies the dynamic-memory prefix wholesale.
func (c *Core) Bytes() []byte { return c.bytes }

// Len reports the working image length in bytes.
func (c *Core) Len() int { return len(c.bytes) }

func (c *Core) Version() uint8 { return c.bytes[offVersion] }
func (c *Core) Flags1() uint8  { return c.bytes[offFlags1] }

// SetFlags1Bit sets or clears a single bit of header byte 1, used when the
// host toggles fixed-pitch or other runtime-visible flags.
func (c *Core) SetFlags1Bit(mask uint8, set bool) {
	if set {
		c.bytes[offFlags1] |= mask
	} else {
		c.bytes[offFlags1] &^= mask
	}
}

func (c *Core) ZorkID() uint16          { return c.ReadWord(offZorkID) }
func (c *Core) PC() uint16              { return c.ReadWord(offPC) }
func (c *Core) DictionaryBase() uint16  { return c.ReadWord(offDictionary) }
func (c *Core) ObjectTableBase() uint16 { return c.ReadWord(offObjectTable) }
func (c *Core) GlobalsBase() uint16     { return c.ReadWord(offGlobals) }
func (c *Core) Purbot() uint16          { return c.purbot }
func (c *Core) AbbreviationsBase() uint16 {
	return c.ReadWord(offAbbreviation)
}
func (c *Core) PackedLength() uint16   { return c.ReadWord(offPackedLen) }
func (c *Core) HeaderChecksum() uint16 { return c.checksum }

// Serial returns the 6-byte ASCII release serial number.
func (c *Core) Serial() [6]byte {
	var s [6]byte
	copy(s[:], c.bytes[offSerial:offSerial+6])
	return s
}

// Verify recomputes the checksum over bytes 64..2*PackedLength of the
// initial image and reports whether it matches the header checksum. This
// is the default VERIFY implementation; a host may override it.
func (c *Core) Verify() bool {
	length := int(c.PackedLength()) * 2
	if length > len(c.initial) {
		length = len(c.initial)
	}
	var sum uint16
	for i := 64; i < length; i++ {
		sum += uint16(c.initial[i])
	}
	return sum == c.checksum
}

// DefPropBase is the 31-word property-defaults table, at header(10) - 2.
func (c *Core) DefPropBase() uint16 {
	return c.ObjectTableBase() - 2
}

// ObjectBase is the start of the 9-byte object records, per this system's
// object-table layout: (header(10) - 2) + 55.
func (c *Core) ObjectBase() uint16 {
	return c.DefPropBase() + 55
}

// InitialBytes returns the full, never-mutated initial image. Used by
// RESTART and by save/restore diffing.
func (c *Core) InitialBytes() []byte { return c.initial }

// ResetToInitial restores the working image from the initial image,
// preserving the mode-flags word at offset 16 (the host-visible
// capability snapshot survives RESTART and RESTORE).
func (c *Core) ResetToInitial() {
	var shadow [2]byte
	copy(shadow[:], c.bytes[offFlagsShadow:offFlagsShadow+2])
	copy(c.bytes, c.initial)
	copy(c.bytes[offFlagsShadow:offFlagsShadow+2], shadow[:])
}

// ReplaceDynamicMemory overwrites the first len(data) bytes of the working
// image with data, preserving the mode-flags word at offset 16 across the
// replacement — the same snapshot-preserve pattern ResetToInitial uses for
// RESTART, applied here by RESTORE so a restored session keeps the live
// host's capability bits rather than whatever was saved.
func (c *Core) ReplaceDynamicMemory(data []byte) {
	var shadow [2]byte
	copy(shadow[:], c.bytes[offFlagsShadow:offFlagsShadow+2])
	copy(c.bytes, data)
	copy(c.bytes[offFlagsShadow:offFlagsShadow+2], shadow[:])
}

// DecodeWord reads a 16-bit value out of an arbitrary byte slice (such as a
// save blob's dynamic-memory prefix) using this core's byte order, the same
// way ReadWord does for the working image.
func (c *Core) DecodeWord(b []byte, addr uint16) uint16 {
	return c.wordAt(b, addr)
}
