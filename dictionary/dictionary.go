// Package dictionary implements the Version 3 dictionary header, vocabulary
// lookup, and the break-character tokenizer that HandleInput runs over a
// typed line before consulting the vocabulary.
package dictionary

import (
	"goz3/zcore"
	"goz3/zstring"
	"regexp"
	"strings"
)

// Header mirrors the dictionary table's fixed prefix: the self-inserting
// break characters, the length of each entry, and the entry count (negative
// when the table is unsorted, which this package ignores since lookup goes
// through a map rather than a binary search).
type Header struct {
	BreakChars  []byte
	EntryLength uint8
	Count       int16
}

// Dictionary is a parsed Version 3 vocabulary: the header plus a map from
// encoded 4-byte key to dictionary entry address, and the tokenizer built
// from the header's break characters.
type Dictionary struct {
	Header Header
	vocab  map[[4]byte]uint16
	tokenRe *regexp.Regexp
}

// Parse reads the dictionary table at base out of core's memory and builds
// the vocabulary map and tokenizer in one pass. A base of 0 means no
// dictionary at all: the tokenizer then splits only on whitespace, and
// every lookup misses since there's no vocabulary to populate.
func Parse(core *zcore.Core, base uint16) *Dictionary {
	if base == 0 {
		return &Dictionary{tokenRe: regexp.MustCompile(`\S+`)}
	}

	ptr := uint32(base)
	n := core.ReadByte(ptr)
	breakChars := make([]byte, n)
	for i := range breakChars {
		breakChars[i] = core.ReadByte(ptr + 1 + uint32(i))
	}
	ptr += 1 + uint32(n)
	entryLength := core.ReadByte(ptr)
	ptr++
	count := int16(core.ReadWord(ptr))
	ptr += 2

	total := int(count)
	if total < 0 {
		total = -total
	}

	vocab := make(map[[4]byte]uint16, total)
	for i := 0; i < total; i++ {
		entryAddr := uint16(ptr)
		var key [4]byte
		key[0] = core.ReadByte(ptr)
		key[1] = core.ReadByte(ptr + 1)
		key[2] = core.ReadByte(ptr + 2)
		key[3] = core.ReadByte(ptr + 3)
		vocab[key] = entryAddr
		ptr += uint32(entryLength)
	}

	return &Dictionary{
		Header: Header{
			BreakChars:  breakChars,
			EntryLength: entryLength,
			Count:       count,
		},
		vocab:   vocab,
		tokenRe: buildTokenRegexp(breakChars),
	}
}

// buildTokenRegexp compiles a single pattern with two alternations: each
// break character matches as its own one-character token, and any maximal
// run of characters that are neither whitespace nor a break character
// matches as a word token.
func buildTokenRegexp(breakChars []byte) *regexp.Regexp {
	var breakAlt strings.Builder
	var classBody strings.Builder
	classBody.WriteString(" \\t\\n")
	for i, b := range breakChars {
		if i > 0 {
			breakAlt.WriteByte('|')
		}
		breakAlt.WriteString(regexp.QuoteMeta(string(b)))
		classBody.WriteString(escapeForCharClass(b))
	}

	pattern := "[^" + classBody.String() + "]+"
	if breakAlt.Len() > 0 {
		pattern = "(?:" + breakAlt.String() + ")|" + pattern
	}
	return regexp.MustCompile(pattern)
}

func escapeForCharClass(b byte) string {
	switch b {
	case '\\', ']', '^', '-':
		return "\\" + string(b)
	default:
		return string(b)
	}
}

// Token is one tokenizer output: its text and its 1-based starting byte
// offset within the original input.
type Token struct {
	Text   string
	Offset int
}

// Tokenize splits s into break-character tokens and word tokens, preserving
// each token's 1-based source offset.
func (d *Dictionary) Tokenize(s string) []Token {
	idx := d.tokenRe.FindAllStringIndex(s, -1)
	tokens := make([]Token, 0, len(idx))
	for _, pair := range idx {
		tokens = append(tokens, Token{Text: s[pair[0]:pair[1]], Offset: pair[0] + 1})
	}
	return tokens
}

// EncodeKey folds a raw token into its dictionary lookup key: characters are
// consumed up to a 6-ZSCII-cost budget (1 for alphabet-0 characters, 2 for
// other printable Z-alphabet characters, 4 for anything else), truncating
// characters beyond the budget, then encoded the same way vocabulary keys
// are encoded.
func EncodeKey(token string) [4]byte {
	const budget = 6
	cost := 0
	var kept []rune
	for _, r := range token {
		c := zsciiCost(r)
		if cost+c > budget {
			break
		}
		cost += c
		kept = append(kept, r)
	}
	return zstring.Encode(kept)
}

func zsciiCost(r rune) int {
	if indexOfLower(r) {
		return 1
	}
	if indexOfOtherAlphabet(r) {
		return 2
	}
	return 4
}

func indexOfLower(r rune) bool {
	return r >= 'a' && r <= 'z'
}

func indexOfOtherAlphabet(r rune) bool {
	if r >= 'A' && r <= 'Z' {
		return true
	}
	switch r {
	case '*', '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9',
		'.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')':
		return true
	}
	return false
}

// Find looks up key in the vocabulary, returning the entry's address or 0
// if absent.
func (d *Dictionary) Find(key [4]byte) uint16 {
	return d.vocab[key]
}
