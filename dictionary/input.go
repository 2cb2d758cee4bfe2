package dictionary

import (
	"strings"

	"goz3/zcore"
)

// HandleInput implements the READ opcode's post-processing: the raw typed
// line is lowercased and truncated to the text buffer's capacity, written
// into the text buffer, tokenized, and the resulting parse records written
// into the parse buffer.
func HandleInput(core *zcore.Core, dict *Dictionary, line string, textBuffer, parseBuffer uint16) {
	maxLen := int(core.ReadByte(uint32(textBuffer))) - 1
	lowered := strings.ToLower(line)
	if len(lowered) > maxLen {
		lowered = lowered[:maxLen]
	}

	for i := 0; i < len(lowered); i++ {
		core.WriteByte(uint32(textBuffer)+1+uint32(i), lowered[i])
	}
	core.WriteByte(uint32(textBuffer)+1+uint32(len(lowered)), 0)

	tokens := dict.Tokenize(lowered)
	maxTokens := int(core.ReadByte(uint32(parseBuffer)))
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	core.WriteByte(uint32(parseBuffer)+1, uint8(len(tokens)))

	for k, tok := range tokens {
		recordAddr := uint32(parseBuffer) + 2 + 4*uint32(k)
		addr := dict.Find(EncodeKey(tok.Text))
		core.WriteWord(recordAddr, addr)
		core.WriteByte(recordAddr+2, uint8(len(tok.Text)))
		core.WriteByte(recordAddr+3, uint8(tok.Offset))
	}
}
