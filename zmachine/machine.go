// Package zmachine implements the Version 3 execution engine: the
// instruction decoder, the opcode dispatcher, the stack/frame model, and
// the save/restore codec. The engine never performs I/O itself; opcodes
// that need the host suspend by returning a *PendingCallout from Step, and
// the caller resumes execution with Resume once the host has answered.
package zmachine

import (
	"fmt"
	"log/slog"

	"goz3/dictionary"
	"goz3/zcore"
	"goz3/zstring"
)

// IllegalOpcodeError reports an opcode table slot with no defined
// instruction for this form/number combination.
type IllegalOpcodeError struct {
	Form   string
	Number uint8
}

func (e *IllegalOpcodeError) Error() string {
	return fmt.Sprintf("zmachine: illegal opcode %s:%02x", e.Form, e.Number)
}

// DivideByZeroError reports a DIV or MOD with a zero divisor. The Version 3
// spec leaves this behavior undefined; this implementation treats it as an
// error rather than silently producing a sentinel.
type DivideByZeroError struct{}

func (e *DivideByZeroError) Error() string { return "zmachine: division by zero" }

// Machine is a single Z-machine execution context: memory, the data stack,
// the call stack, the program counter, the text codec, and the dictionary.
// None of its methods perform I/O; Step returns a *PendingCallout whenever
// an opcode needs something from the host.
type Machine struct {
	core  *zcore.Core
	codec *zstring.Codec
	dict  *dictionary.Dictionary

	pc    uint32
	stack []uint16
	calls callStack

	rngState   uint32
	isTandy    bool
	statusType uint8 // 0 = score/moves, 1 = hours:minutes
	fixedPitch bool

	undo undoCache

	pending *PendingCallout

	logger *slog.Logger
	warned map[string]bool
}

// New loads rom and builds a Machine ready to run from the header's first
// instruction. hostFlags carries the two host-configured bits of header
// byte 1 (byte-swap and status-line type); isTandy controls the Tandy
// capability bit Init advertises.
func New(rom []byte, hostFlags uint8, isTandy bool) (*Machine, error) {
	core, err := zcore.Load(rom, hostFlags)
	if err != nil {
		return nil, err
	}
	core.Init(isTandy)

	m := &Machine{
		core:       core,
		codec:      zstring.New(core, core.AbbreviationsBase()),
		dict:       dictionary.Parse(core, core.DictionaryBase()),
		pc:         uint32(core.PC()),
		isTandy:    isTandy,
		statusType: (hostFlags & zcore.Flag1StatusHMS) >> 1,
		rngState:   0xA5A5A5A5,
		logger:     slog.Default(),
		warned:     make(map[string]bool),
	}
	m.calls.push(frame{storeVar: noStore})
	return m, nil
}

// SetLogger replaces the machine's diagnostic logger. A nil logger restores
// slog.Default().
func (m *Machine) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	m.logger = l
}

// warnOnce logs a Warn-level diagnostic at most once per key for the
// lifetime of the machine, so a long-running session doesn't spam the same
// complaint every opcode.
func (m *Machine) warnOnce(key, msg string, args ...any) {
	if m.warned[key] {
		return
	}
	m.warned[key] = true
	m.logger.Warn(msg, append([]any{"pc", m.pc}, args...)...)
}

// Restart reinitializes the working memory image and the continuation,
// preserving the mode-flags word across the reset per the header contract.
func (m *Machine) Restart() {
	m.core.ResetToInitial()
	m.core.Init(m.isTandy)
	m.pc = uint32(m.core.PC())
	m.stack = nil
	m.calls = callStack{}
	m.calls.push(frame{storeVar: noStore})
	m.codec = zstring.New(m.core, m.core.AbbreviationsBase())
}

// Core exposes the underlying memory image for hosts that need direct
// access (transcripts, debugging, disassembly tools).
func (m *Machine) Core() *zcore.Core { return m.core }

// Serial returns the 6-byte ASCII release serial number.
func (m *Machine) Serial() [6]byte { return m.core.Serial() }

// ZorkID returns the header's release identifier, used for save
// compatibility checks.
func (m *Machine) ZorkID() uint16 { return m.core.ZorkID() }

// StatusType reports whether the status line shows score/moves (0) or
// hours:minutes (1), per the host-supplied flag at load time.
func (m *Machine) StatusType() uint8 { return m.statusType }

func (m *Machine) readByteIncPC() uint8 {
	b := m.core.ReadByte(m.pc)
	m.pc++
	return b
}

func (m *Machine) readWordIncPC() uint16 {
	w := m.core.ReadWord(m.pc)
	m.pc += 2
	return w
}

// fetch reads variable v: 0 pops the data stack, 1-15 reads a local of the
// active frame, 16-255 reads a global.
func (m *Machine) fetch(v uint8) (uint16, error) {
	switch {
	case v == 0:
		if len(m.stack) == 0 {
			return 0, fmt.Errorf("zmachine: pop from empty data stack")
		}
		top := m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]
		return top, nil
	case v < 16:
		f, err := m.calls.peek()
		if err != nil {
			return 0, err
		}
		if int(v-1) >= len(f.locals) {
			return 0, fmt.Errorf("zmachine: local variable %d out of range", v)
		}
		return f.locals[v-1], nil
	default:
		return m.core.ReadWord(uint32(m.core.GlobalsBase()) + 2*uint32(v-16)), nil
	}
}

// xstore writes value to variable v with the same addressing as fetch;
// storing to 0 pushes the data stack.
func (m *Machine) xstore(v uint8, value uint16) error {
	switch {
	case v == 0:
		m.stack = append(m.stack, value)
		return nil
	case v < 16:
		f, err := m.calls.peek()
		if err != nil {
			return err
		}
		if int(v-1) >= len(f.locals) {
			return fmt.Errorf("zmachine: local variable %d out of range", v)
		}
		f.locals[v-1] = value
		return nil
	default:
		m.core.WriteWord(uint32(m.core.GlobalsBase())+2*uint32(v-16), value)
		return nil
	}
}

func (m *Machine) push(v uint16) { m.stack = append(m.stack, v) }

func (m *Machine) popStack() (uint16, error) {
	if len(m.stack) == 0 {
		return 0, fmt.Errorf("zmachine: pop from empty data stack")
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return top, nil
}
