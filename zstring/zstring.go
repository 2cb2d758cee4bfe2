// Package zstring implements the Z-character text codec: decoding packed
// strings out of a story file's memory image, and encoding runes back into
// packed Z-strings for dictionary key matching.
package zstring

import "goz3/zcore"

// Alphabets holds the three 26-entry Z-character tables. a2[1] is '\n' per
// the Version 3 layout (not '0' as in the two-shift-lock V1/V2 layout this
// system doesn't support).
type Alphabets struct {
	a0 [26]rune
	a1 [26]rune
	a2 [26]rune
}

// Default is the only alphabet table this interpreter ever installs; V3
// story files have no mechanism for supplying a custom one.
var Default = Alphabets{
	a0: [26]rune{
		'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm',
		'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z',
	},
	a1: [26]rune{
		'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M',
		'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z',
	},
	a2: [26]rune{
		'*', '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.',
		',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')',
	},
}

// Codec decodes and encodes Z-strings against a single story file's memory
// and abbreviation table. EndAddr is set by Decode to the address just past
// the terminated word; PRINTI and similar opcodes use it to advance PC.
type Codec struct {
	core       *zcore.Core
	alphabets  Alphabets
	abbrevBase uint16

	EndAddr uint16
}

// New builds a Codec bound to core's memory and the header's abbreviation
// table base.
func New(core *zcore.Core, abbrevBase uint16) *Codec {
	return &Codec{core: core, alphabets: Default, abbrevBase: abbrevBase}
}

// shift states for temporary_shift, beyond the three alphabet indices 0-2.
const (
	shiftAsciiHigh = 3
	shiftAsciiLow  = 4
	shiftAbbrev    = 5
)

// Decode reads packed Z-characters starting at addr and returns the decoded
// string. EndAddr is updated to the address just past the last word read
// (the one with its end bit set).
func (c *Codec) Decode(addr uint16) string {
	s, end := c.decode(addr)
	c.EndAddr = end
	return s
}

func (c *Codec) decode(addr uint16) (string, uint16) {
	var zchars []uint8
	ptr := addr
	for {
		word := c.core.ReadWord(uint32(ptr))
		ptr += 2
		zchars = append(zchars,
			uint8((word>>10)&0x1f),
			uint8((word>>5)&0x1f),
			uint8(word&0x1f),
		)
		if word&0x8000 != 0 {
			break
		}
	}

	var out []rune
	permanentShift := 0
	temporaryShift := 0
	aux := 0

	for i := 0; i < len(zchars); i++ {
		zc := int(zchars[i])

		switch {
		case temporaryShift == shiftAsciiHigh:
			aux = zc
			temporaryShift = shiftAsciiLow

		case temporaryShift == shiftAsciiLow:
			b := aux<<5 | zc
			switch b {
			case 13:
				out = append(out, '\n')
			case 0:
				// nothing emitted
			default:
				out = append(out, rune(b))
			}
			temporaryShift = permanentShift

		case temporaryShift == shiftAbbrev:
			out = append(out, []rune(c.decodeAbbreviation(aux+zc))...)
			temporaryShift = permanentShift

		case zc == 0:
			out = append(out, ' ')

		case zc == 1 || zc == 2 || zc == 3:
			aux = (zc - 1) * 32
			temporaryShift = shiftAbbrev

		case zc == 4 || zc == 5:
			next := zc - 3
			if temporaryShift == 0 {
				temporaryShift = next
			} else if temporaryShift == next {
				permanentShift = next
				temporaryShift = permanentShift
			} else {
				permanentShift = 0
				temporaryShift = 0
			}

		case zc == 6 && temporaryShift == 2:
			temporaryShift = shiftAsciiHigh

		default:
			out = append(out, c.alphabets.rune(temporaryShift, zc-6))
			temporaryShift = permanentShift
		}
	}

	return string(out), ptr
}

func (a *Alphabets) rune(alphabet, index int) rune {
	switch alphabet {
	case 1:
		return a.a1[index]
	case 2:
		return a.a2[index]
	default:
		return a.a0[index]
	}
}

// decodeAbbreviation resolves abbreviation index ix: a word address is read
// from the abbreviation table at index ix, doubled to a byte address, and
// decoded recursively. The format guarantees abbreviation strings don't
// themselves escape into further abbreviations.
func (c *Codec) decodeAbbreviation(ix int) string {
	entryAddr := uint32(c.abbrevBase) + 2*uint32(ix)
	strAddr := c.core.ReadWord(entryAddr) * 2
	s, _ := c.decode(strAddr)
	return s
}

// shiftA1, shiftA2 are the Z-character codes for alphabet-1/alphabet-2
// shifts in the three-alphabet, no-shift-lock encoding this system always
// produces (there's no shift-lock form in the V3 encoder; only the decoder
// needs to understand the permanent-shift lock).
const (
	shiftA1 = 4
	shiftA2 = 5
)

// Encode translates s into exactly 6 Z-characters packed into two 16-bit
// words (4 bytes) — the fixed width of a Version 3 dictionary key. Runes
// with no alphabet slot fall back to the alphabet-2 escape-6 raw-byte form;
// runes outside printable ASCII (32-126) with no alphabet slot are dropped.
func Encode(s []rune) [4]byte {
	zchars := make([]uint8, 0, 6)

	for _, r := range s {
		if len(zchars) >= 6 {
			break
		}
		switch {
		case r == ' ':
			zchars = append(zchars, 0)
		case indexOf(Default.a0, r) >= 0:
			zchars = append(zchars, uint8(6+indexOf(Default.a0, r)))
		case indexOf(Default.a1, r) >= 0:
			zchars = append(zchars, shiftA1, uint8(6+indexOf(Default.a1, r)))
		case indexOf(Default.a2, r) >= 0:
			zchars = append(zchars, shiftA2, uint8(6+indexOf(Default.a2, r)))
		case r >= 32 && r < 127:
			zchars = append(zchars, shiftA2, 6, uint8(r)>>5, uint8(r)&0x1f)
		default:
			// unrepresentable; dropped rather than corrupting the key
		}
	}

	for len(zchars) < 6 {
		zchars = append(zchars, 5) // pad with shift-lock-2, the conventional filler
	}
	zchars = zchars[:6]

	var out [4]byte
	for word := 0; word < 2; word++ {
		a, b, c := zchars[word*3], zchars[word*3+1], zchars[word*3+2]
		v := uint16(a&0x1f)<<10 | uint16(b&0x1f)<<5 | uint16(c&0x1f)
		if word == 1 {
			v |= 0x8000
		}
		out[word*2] = byte(v >> 8)
		out[word*2+1] = byte(v)
	}
	return out
}

func indexOf(table [26]rune, r rune) int {
	for i, c := range table {
		if c == r {
			return i
		}
	}
	return -1
}
