package dictionary_test

import (
	"testing"

	"goz3/dictionary"
	"goz3/zcore"
)

// buildTestDictionary writes a dictionary table with break chars ",." and
// two vocabulary words, "take" and "lamp", at base.
func buildTestDictionary(t *testing.T, core *zcore.Core, base uint16) *dictionary.Dictionary {
	t.Helper()
	ptr := uint32(base)
	core.WriteByte(ptr, 2) // two break characters
	core.WriteByte(ptr+1, ',')
	core.WriteByte(ptr+2, '.')
	core.WriteByte(ptr+3, 7) // entry length: 4-byte key + 3 bytes data
	core.WriteWord(ptr+4, 2) // two entries

	entryPtr := ptr + 6
	for _, word := range []string{"take", "lamp"} {
		key := dictionary.EncodeKey(word)
		for i, b := range key {
			core.WriteByte(entryPtr+uint32(i), b)
		}
		entryPtr += 7
	}

	return dictionary.Parse(core, base)
}

func newTestCore(t *testing.T) *zcore.Core {
	t.Helper()
	rom := make([]byte, 512)
	rom[0] = 3
	core, err := zcore.Load(rom, 0)
	if err != nil {
		t.Fatalf("zcore.Load: %v", err)
	}
	return core
}

func TestTokenizeBreakCharsAndWords(t *testing.T) {
	core := newTestCore(t)
	dict := buildTestDictionary(t, core, 0x40)

	tokens := dict.Tokenize("take lamp, now.")
	want := []dictionary.Token{
		{Text: "take", Offset: 1},
		{Text: "lamp", Offset: 6},
		{Text: ",", Offset: 10},
		{Text: "now", Offset: 12},
		{Text: ".", Offset: 15},
	}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize() produced %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, tok := range tokens {
		if tok != want[i] {
			t.Fatalf("token %d = %+v, want %+v", i, tok, want[i])
		}
	}
}

func TestFindLooksUpEncodedKey(t *testing.T) {
	core := newTestCore(t)
	dict := buildTestDictionary(t, core, 0x40)

	addr := dict.Find(dictionary.EncodeKey("take"))
	if addr == 0 {
		t.Fatalf("Find(take) returned 0, want a nonzero dictionary address")
	}

	if got := dict.Find(dictionary.EncodeKey("xyzzy")); got != 0 {
		t.Fatalf("Find(xyzzy) = %#x, want 0", got)
	}
}

func TestParseWithNoDictionarySplitsOnWhitespaceOnly(t *testing.T) {
	core := newTestCore(t)
	dict := dictionary.Parse(core, 0)

	tokens := dict.Tokenize("take lamp, now.")
	want := []string{"take", "lamp,", "now."}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize() produced %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, tok := range tokens {
		if tok.Text != want[i] {
			t.Fatalf("token %d = %q, want %q", i, tok.Text, want[i])
		}
	}

	if addr := dict.Find(dictionary.EncodeKey("take")); addr != 0 {
		t.Fatalf("Find() with no dictionary = %#x, want 0", addr)
	}
}

func TestHandleInputWritesParseRecords(t *testing.T) {
	core := newTestCore(t)
	dict := buildTestDictionary(t, core, 0x40)

	const textBuffer = 0x200
	const parseBuffer = 0x300
	core.WriteByte(textBuffer, 64) // capacity
	core.WriteByte(parseBuffer, 10) // max tokens

	dictionary.HandleInput(core, dict, "Take Lamp, Now.", textBuffer, parseBuffer)

	if got := core.ReadByte(uint32(parseBuffer) + 1); got != 5 {
		t.Fatalf("token count = %d, want 5", got)
	}

	// first record: "take" found in dictionary, length 4, offset 1
	addr := core.ReadWord(uint32(parseBuffer) + 2)
	if addr == 0 {
		t.Fatalf("expected take's dictionary address to be nonzero")
	}
	if got := core.ReadByte(uint32(parseBuffer) + 4); got != 4 {
		t.Fatalf("take token length = %d, want 4", got)
	}
	if got := core.ReadByte(uint32(parseBuffer) + 5); got != 1 {
		t.Fatalf("take token offset = %d, want 1", got)
	}

	// third record: "," has no dictionary entry
	commaAddr := core.ReadWord(uint32(parseBuffer) + 2 + 4*2)
	if commaAddr != 0 {
		t.Fatalf("comma's dictionary address = %#x, want 0", commaAddr)
	}
}
