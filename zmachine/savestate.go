package zmachine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Serialize snapshots everything SAVE needs to reconstruct this machine
// later: the dynamic-memory prefix (static memory never changes, so it's
// left out), the program counter, and the call stack with each frame's
// saved data stack and locals. The layout is this system's own — it does
// not attempt to reproduce any historical on-disk save format.
//
// The blob begins with the first PURBOT bytes of the working image
// directly, with no length prefix ahead of them, so that bytes 2-3 (the
// ZORKID) and the header flags land at the same offsets they occupy in the
// live image — Deserialize reads exactly m.core.Purbot() bytes back out and
// needs nowhere else to learn that length.
//
// Frames are written newest (deepest call) first, matching the order
// Deserialize needs to rebuild the call stack: the innermost frame's live data
// stack is whatever's on m.stack at save time, and every enclosing frame's
// data stack was already captured in frame.savedStack at CALL time.
func (m *Machine) Serialize() []byte {
	var buf bytes.Buffer

	buf.Write(m.core.Bytes()[:m.core.Purbot()])

	binary.Write(&buf, binary.BigEndian, m.pc)

	binary.Write(&buf, binary.BigEndian, uint16(m.calls.depth()))
	writeWordSlice(&buf, m.stack)

	for i := m.calls.depth() - 1; i >= 0; i-- {
		f := m.calls.frames[i]
		binary.Write(&buf, binary.BigEndian, f.returnPC)
		buf.WriteByte(f.storeVar)
		writeWordSlice(&buf, f.savedStack)
		buf.WriteByte(uint8(len(f.locals)))
		for _, l := range f.locals {
			binary.Write(&buf, binary.BigEndian, l)
		}
	}

	return buf.Bytes()
}

func writeWordSlice(buf *bytes.Buffer, words []uint16) {
	binary.Write(buf, binary.BigEndian, uint16(len(words)))
	for _, w := range words {
		binary.Write(buf, binary.BigEndian, w)
	}
}

// RestoreFailedError reports a RESTORE whose blob doesn't match this
// machine's story file, or is truncated/corrupt.
type RestoreFailedError struct {
	Reason string
}

func (e *RestoreFailedError) Error() string {
	return fmt.Sprintf("zmachine: restore failed: %s", e.Reason)
}

// Deserialize replaces this machine's memory, program counter, and call
// stack with the contents of blob, as produced by Serialize.
func (m *Machine) Deserialize(blob []byte) error {
	r := bytes.NewReader(blob)

	dynamicLen := m.core.Purbot()
	dynamic := make([]byte, dynamicLen)
	if _, err := io.ReadFull(r, dynamic); err != nil {
		return &RestoreFailedError{Reason: "truncated dynamic memory"}
	}
	if zorkID := m.core.DecodeWord(dynamic, 2); zorkID != m.core.ZorkID() {
		return &RestoreFailedError{Reason: "zorkid mismatch"}
	}
	m.core.ReplaceDynamicMemory(dynamic)

	var pc uint32
	if err := binary.Read(r, binary.BigEndian, &pc); err != nil {
		return &RestoreFailedError{Reason: "truncated program counter"}
	}

	var frameCount uint16
	if err := binary.Read(r, binary.BigEndian, &frameCount); err != nil {
		return &RestoreFailedError{Reason: "truncated call stack depth"}
	}

	liveStack, err := readWordSlice(r)
	if err != nil {
		return &RestoreFailedError{Reason: "truncated data stack"}
	}

	frames := make([]frame, frameCount)
	for i := 0; i < int(frameCount); i++ {
		var f frame
		if err := binary.Read(r, binary.BigEndian, &f.returnPC); err != nil {
			return &RestoreFailedError{Reason: "truncated frame"}
		}
		storeVar, err := r.ReadByte()
		if err != nil {
			return &RestoreFailedError{Reason: "truncated frame"}
		}
		f.storeVar = storeVar
		if f.savedStack, err = readWordSlice(r); err != nil {
			return &RestoreFailedError{Reason: "truncated frame stack"}
		}
		localCount, err := r.ReadByte()
		if err != nil {
			return &RestoreFailedError{Reason: "truncated frame locals"}
		}
		f.locals = make([]uint16, localCount)
		for j := range f.locals {
			if err := binary.Read(r, binary.BigEndian, &f.locals[j]); err != nil {
				return &RestoreFailedError{Reason: "truncated frame locals"}
			}
		}
		frames[int(frameCount)-1-i] = f
	}

	m.pc = pc
	m.stack = liveStack
	m.calls = callStack{frames: frames}
	return nil
}

func readWordSlice(r *bytes.Reader) ([]uint16, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		if err := binary.Read(r, binary.BigEndian, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
