package zmachine

import (
	"fmt"
	"strconv"
	"time"

	"goz3/dictionary"
	"goz3/zobject"
)

// Step decodes and executes exactly one instruction, returning nil when it
// completed synchronously or a *PendingCallout when it needs something
// from the host. The caller must answer a non-nil callout with Resume
// before calling Step again.
func (m *Machine) Step() (*PendingCallout, error) {
	if m.pending != nil {
		return nil, &CalloutPendingError{}
	}
	inst, err := m.decodeInstruction()
	if err != nil {
		return nil, err
	}
	callout, err := m.execute(inst)
	if err != nil {
		return nil, err
	}
	if callout != nil {
		m.pending = callout
	}
	return callout, nil
}

// CalloutPendingError reports a Step call made while a prior callout is
// still awaiting Resume.
type CalloutPendingError struct{}

func (e *CalloutPendingError) Error() string {
	return "zmachine: Step called with a callout still pending Resume"
}

func (m *Machine) operandValues(inst instruction) ([]uint16, error) {
	vals := make([]uint16, len(inst.operands))
	for i, o := range inst.operands {
		v, err := o.resolve(m)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (m *Machine) storeResult(inst instruction, value uint16) error {
	if !inst.hasStore {
		return nil
	}
	return m.xstore(inst.storeVar, value)
}

// branch implements the branch specifier's sense check and the offset
// 0/1 return shortcuts described in §4.6: an offset of 0 or 1 returns
// false/true from the current routine instead of jumping.
func (m *Machine) branch(inst instruction, cond bool) error {
	if !inst.hasBranch || cond != inst.branchSense {
		return nil
	}
	switch inst.branchOff {
	case 0:
		return m.doReturn(0)
	case 1:
		return m.doReturn(1)
	default:
		m.pc = uint32(int32(m.pc) + int32(inst.branchOff) - 2)
		return nil
	}
}

// doReturn pops the active call frame, restores the caller's data stack,
// resumes the caller's PC, and stores value to the caller's destination
// variable if CALL asked for one.
func (m *Machine) doReturn(value uint16) error {
	f, err := m.calls.pop()
	if err != nil {
		return err
	}
	m.stack = f.savedStack
	m.pc = f.returnPC
	if f.storeVar == noStore {
		return nil
	}
	return m.xstore(f.storeVar, value)
}

// doCall implements CALL's routine-entry semantics: a zero address is a
// no-op that stores 0, otherwise the routine header's declared locals are
// loaded with their defaults and only the locals actually supplied by the
// caller (capped at the declared count) are overwritten.
func (m *Machine) doCall(inst instruction, vals []uint16) error {
	if vals[0] == 0 {
		return m.storeResult(inst, 0)
	}

	routineAddr := uint32(vals[0]) * 2
	localCount := m.core.ReadByte(routineAddr)
	locals := make([]uint16, localCount)
	for i := range locals {
		locals[i] = m.core.ReadWord(routineAddr + 1 + uint32(i)*2)
	}

	args := vals[1:]
	for i := 0; i < len(args) && i < len(locals); i++ {
		locals[i] = args[i]
	}

	storeVar := uint8(noStore)
	if inst.hasStore {
		storeVar = inst.storeVar
	}

	m.calls.push(frame{
		returnPC:   m.pc,
		storeVar:   storeVar,
		savedStack: m.stack,
		locals:     locals,
	})
	m.stack = nil
	m.pc = routineAddr + 1 + uint32(localCount)*2
	return nil
}

func (m *Machine) execute(inst instruction) (*PendingCallout, error) {
	vals, err := m.operandValues(inst)
	if err != nil {
		return nil, err
	}

	switch inst.count {
	case op2:
		return m.executeOp2(inst, vals)
	case op1:
		return m.executeOp1(inst, vals)
	case op0:
		return m.executeOp0(inst, vals)
	default:
		return m.executeVar(inst, vals)
	}
}

func (m *Machine) executeOp2(inst instruction, v []uint16) (*PendingCallout, error) {
	switch inst.number {
	case 0x01: // EQUAL?
		branch := false
		for _, b := range v[1:] {
			if b == v[0] {
				branch = true
				break
			}
		}
		return nil, m.branch(inst, branch)

	case 0x02: // LESS?
		return nil, m.branch(inst, int16(v[0]) < int16(v[1]))

	case 0x03: // GRTR?
		return nil, m.branch(inst, int16(v[0]) > int16(v[1]))

	case 0x04: // DLESS?
		variable := uint8(v[0])
		cur, err := m.fetch(variable)
		if err != nil {
			return nil, err
		}
		cur--
		if err := m.xstore(variable, cur); err != nil {
			return nil, err
		}
		return nil, m.branch(inst, int16(cur) < int16(v[1]))

	case 0x05: // IGRTR?
		variable := uint8(v[0])
		cur, err := m.fetch(variable)
		if err != nil {
			return nil, err
		}
		cur++
		if err := m.xstore(variable, cur); err != nil {
			return nil, err
		}
		return nil, m.branch(inst, int16(cur) > int16(v[1]))

	case 0x06: // IN?
		return nil, m.branch(inst, zobject.Get(m.core, v[0]).Parent() == v[1])

	case 0x07: // BTST
		return nil, m.branch(inst, v[0]&v[1] == v[1])

	case 0x08: // BOR
		return nil, m.storeResult(inst, v[0]|v[1])

	case 0x09: // BAND
		return nil, m.storeResult(inst, v[0]&v[1])

	case 0x0a: // FSET?
		return nil, m.branch(inst, zobject.Get(m.core, v[0]).GetAttr(v[1]))

	case 0x0b: // FSET
		zobject.Get(m.core, v[0]).SetAttr(v[1])
		return nil, nil

	case 0x0c: // FCLEAR
		zobject.Get(m.core, v[0]).ClearAttr(v[1])
		return nil, nil

	case 0x0d: // SET
		return nil, m.xstore(uint8(v[0]), v[1])

	case 0x0e: // MOVE
		zobject.Move(m.core, v[0], v[1])
		return nil, nil

	case 0x0f: // GET
		return nil, m.storeResult(inst, m.core.ReadWord(uint32(v[0])+2*uint32(v[1])))

	case 0x10: // GETB
		return nil, m.storeResult(inst, uint16(m.core.ReadByte(uint32(v[0])+uint32(v[1]))))

	case 0x11: // GETP
		return nil, m.storeResult(inst, zobject.GetProp(m.core, zobject.Get(m.core, v[0]), uint8(v[1])))

	case 0x12: // GETPT
		return nil, m.storeResult(inst, zobject.GetPropAddr(m.core, zobject.Get(m.core, v[0]), uint8(v[1])))

	case 0x13: // NEXTP
		return nil, m.storeResult(inst, uint16(zobject.NextProp(m.core, zobject.Get(m.core, v[0]), uint8(v[1]))))

	case 0x14: // ADD
		return nil, m.storeResult(inst, v[0]+v[1])

	case 0x15: // SUB
		return nil, m.storeResult(inst, v[0]-v[1])

	case 0x16: // MUL
		return nil, m.storeResult(inst, v[0]*v[1])

	case 0x17: // DIV
		if int16(v[1]) == 0 {
			return nil, &DivideByZeroError{}
		}
		return nil, m.storeResult(inst, uint16(int16(v[0])/int16(v[1])))

	case 0x18: // MOD
		if int16(v[1]) == 0 {
			return nil, &DivideByZeroError{}
		}
		return nil, m.storeResult(inst, uint16(int16(v[0])%int16(v[1])))

	default:
		return nil, &IllegalOpcodeError{Form: "2OP", Number: inst.number}
	}
}

func (m *Machine) executeOp1(inst instruction, v []uint16) (*PendingCallout, error) {
	switch inst.number {
	case 0x00: // ZERO?
		return nil, m.branch(inst, v[0] == 0)

	case 0x01: // NEXT?
		sibling := zobject.Get(m.core, v[0]).Sibling()
		if err := m.storeResult(inst, sibling); err != nil {
			return nil, err
		}
		return nil, m.branch(inst, sibling != 0)

	case 0x02: // FIRST?
		child := zobject.Get(m.core, v[0]).Child()
		if err := m.storeResult(inst, child); err != nil {
			return nil, err
		}
		return nil, m.branch(inst, child != 0)

	case 0x03: // LOC
		return nil, m.storeResult(inst, zobject.Get(m.core, v[0]).Parent())

	case 0x04: // PTSIZE
		return nil, m.storeResult(inst, uint16(zobject.PropLength(m.core, v[0])))

	case 0x05: // INC
		variable := uint8(v[0])
		cur, err := m.fetch(variable)
		if err != nil {
			return nil, err
		}
		return nil, m.xstore(variable, cur+1)

	case 0x06: // DEC
		variable := uint8(v[0])
		cur, err := m.fetch(variable)
		if err != nil {
			return nil, err
		}
		return nil, m.xstore(variable, cur-1)

	case 0x07: // PRINTB
		text := m.codec.Decode(v[0])
		return m.doPrint(text, nil)

	case 0x09: // REMOVE
		zobject.Move(m.core, v[0], 0)
		return nil, nil

	case 0x0a: // PRINTD
		table := zobject.Get(m.core, v[0]).PropertyTable()
		nameLen := m.core.ReadByte(uint32(table))
		var text string
		if nameLen > 0 {
			text = m.codec.Decode(table + 1)
		}
		return m.doPrint(text, nil)

	case 0x0b: // RETURN
		return nil, m.doReturn(v[0])

	case 0x0c: // JUMP
		m.pc = uint32(int32(m.pc) + int32(int16(v[0])) - 2)
		return nil, nil

	case 0x0d: // PRINT (print_paddr)
		text := m.codec.Decode(v[0] * 2)
		return m.doPrint(text, nil)

	case 0x0e: // VALUE
		// Variable 0 names the data stack; VALUE peeks it rather than
		// popping, unlike every other variable-reading opcode.
		variable := uint8(v[0])
		var val uint16
		if variable == 0 {
			if len(m.stack) == 0 {
				return nil, fmt.Errorf("zmachine: VALUE read an empty data stack")
			}
			val = m.stack[len(m.stack)-1]
		} else {
			var err error
			val, err = m.fetch(variable)
			if err != nil {
				return nil, err
			}
		}
		return nil, m.storeResult(inst, val)

	case 0x0f: // BCOM
		return nil, m.storeResult(inst, ^v[0])

	default:
		return nil, &IllegalOpcodeError{Form: "1OP", Number: inst.number}
	}
}

func (m *Machine) executeOp0(inst instruction, v []uint16) (*PendingCallout, error) {
	switch inst.number {
	case 0x00: // RTRUE
		return nil, m.doReturn(1)

	case 0x01: // RFALSE
		return nil, m.doReturn(0)

	case 0x02: // PRINTI
		text := m.codec.Decode(uint16(m.pc))
		m.pc = uint32(m.codec.EndAddr)
		return m.doPrint(text, nil)

	case 0x03: // PRINTR
		text := m.codec.Decode(uint16(m.pc))
		m.pc = uint32(m.codec.EndAddr)
		return m.doPrint(text+"\n", func(m *Machine) (*PendingCallout, error) {
			return nil, m.doReturn(1)
		})

	case 0x04: // NOOP
		return nil, nil

	case 0x05: // SAVE
		// Branches on success. The blob records the PC of this SAVE's branch
		// specifier (one byte when bit 6 is set, else two), so a RESTORE of
		// it can decode that specifier and take the branch.
		branchLen := uint32(2)
		if inst.branchOff >= 0 && inst.branchOff <= 0x3f && m.core.ReadByte(m.pc-1)&0x40 != 0 {
			branchLen = 1
		}
		afterBranch := m.pc
		m.pc -= branchLen
		blob := m.Serialize()
		m.pc = afterBranch
		return &PendingCallout{
			Kind:     CalloutSave,
			SaveBlob: blob,
			resume: func(m *Machine, result any) (*PendingCallout, error) {
				ok, _ := result.(bool)
				return nil, m.branch(inst, ok)
			},
		}, nil

	case 0x06: // RESTORE
		// A failed restore does not branch. On success the restored PC is the
		// matching SAVE's branch specifier, which is decoded and taken as a
		// successful branch from there.
		return &PendingCallout{
			Kind: CalloutRestore,
			resume: func(m *Machine, result any) (*PendingCallout, error) {
				blob, ok := result.([]byte)
				if !ok || blob == nil {
					m.warnOnce("restore-no-blob", "restore requested with no save data")
					return nil, m.branch(inst, false)
				}
				if err := m.Deserialize(blob); err != nil {
					m.logger.Warn("restore failed", "pc", m.pc, "err", err)
					return nil, m.branch(inst, false)
				}
				var saved instruction
				m.decodeBranch(&saved)
				return nil, m.branch(saved, true)
			},
		}, nil

	case 0x07: // RESTART
		m.Restart()
		return &PendingCallout{
			Kind: CalloutRestarted,
			resume: func(m *Machine, _ any) (*PendingCallout, error) {
				return nil, nil
			},
		}, nil

	case 0x08: // RSTACK
		val, err := m.popStack()
		if err != nil {
			return nil, err
		}
		return nil, m.doReturn(val)

	case 0x09: // FSTACK
		_, err := m.popStack()
		return nil, err

	case 0x0a: // QUIT
		return &PendingCallout{
			Kind: CalloutQuit,
			resume: func(m *Machine, _ any) (*PendingCallout, error) {
				return nil, nil
			},
		}, nil

	case 0x0b: // CRLF
		return m.doPrint("\n", nil)

	case 0x0c: // USL
		return m.doStatus(nil)

	case 0x0d: // VERIFY
		return nil, m.branch(inst, m.core.Verify())

	default:
		return nil, &IllegalOpcodeError{Form: "0OP", Number: inst.number}
	}
}

func (m *Machine) executeVar(inst instruction, v []uint16) (*PendingCallout, error) {
	switch inst.number {
	case 0x00: // CALL
		return nil, m.doCall(inst, v)

	case 0x01: // PUT
		m.core.WriteWord(uint32(v[0])+2*uint32(v[1]), v[2])
		return nil, nil

	case 0x02: // PUTB
		m.core.WriteByte(uint32(v[0])+uint32(v[1]), uint8(v[2]))
		return nil, nil

	case 0x03: // PUTP
		zobject.PutProp(m.core, zobject.Get(m.core, v[0]), uint8(v[1]), v[2])
		return nil, nil

	case 0x04: // READ
		textBuffer, parseBuffer := v[0], v[1]
		maxLen := int(m.core.ReadByte(uint32(textBuffer)))
		// Flush any pending output and refresh the status line before
		// handing control to the host's line reader, same as USL's own
		// refresh below.
		return m.doPrint("", func(m *Machine) (*PendingCallout, error) {
			return m.doStatus(func(m *Machine) (*PendingCallout, error) {
				return &PendingCallout{
					Kind:   CalloutRead,
					MaxLen: maxLen,
					resume: func(m *Machine, result any) (*PendingCallout, error) {
						line, _ := result.(string)
						m.handleInput(line, textBuffer, parseBuffer)
						return nil, nil
					},
				}, nil
			})
		})

	case 0x05: // PRINTC
		return m.doPrint(string(rune(uint8(v[0]))), nil)

	case 0x06: // PRINTN
		return m.doPrint(strconv.Itoa(int(int16(v[0]))), nil)

	case 0x07: // RANDOM
		n := int16(v[0])
		var result uint16
		switch {
		case n > 0:
			m.rngState = m.rngState*1664525 + 1013904223
			result = uint16(uint64(m.rngState)*uint64(n)>>32) + 1
		case n == 0:
			m.reseedRandom()
		default:
			m.rngState = uint32(-n)
		}
		return nil, m.storeResult(inst, result)

	case 0x08: // PUSH
		m.push(v[0])
		return nil, nil

	case 0x09: // POP
		val, err := m.popStack()
		if err != nil {
			return nil, err
		}
		return nil, m.xstore(uint8(v[0]), val)

	case 0x0a: // SPLIT
		return &PendingCallout{
			Kind:   CalloutSplit,
			Height: int(v[0]),
			resume: func(m *Machine, _ any) (*PendingCallout, error) {
				return nil, nil
			},
		}, nil

	case 0x0b: // SCREEN
		if v[0] != 0 && v[0] != 1 {
			m.warnOnce("screen-window", "SET_WINDOW given an unrecognized window number", "window", v[0])
		}
		return &PendingCallout{
			Kind:   CalloutScreen,
			Window: int(v[0]),
			resume: func(m *Machine, _ any) (*PendingCallout, error) {
				return nil, nil
			},
		}, nil

	default:
		return nil, &IllegalOpcodeError{Form: "VAR", Number: inst.number}
	}
}

// doStatus builds the USL status-line callout and, once the host
// acknowledges it, runs continuation (nil for USL itself; READ chains a
// further read callout onto it so the status line refreshes right before
// the host's line reader takes over).
func (m *Machine) doStatus(continuation func(*Machine) (*PendingCallout, error)) (*PendingCallout, error) {
	locID, err := m.fetch(16) // first global: current location
	if err != nil {
		return nil, err
	}
	var locName string
	if locID != 0 {
		table := zobject.Get(m.core, locID).PropertyTable()
		if m.core.ReadByte(uint32(table)) > 0 {
			locName = m.codec.Decode(table + 1)
		}
	}
	g2, err := m.fetch(17)
	if err != nil {
		return nil, err
	}
	g3, err := m.fetch(18)
	if err != nil {
		return nil, err
	}
	return &PendingCallout{
		Kind:       CalloutStatus,
		StatusText: locName,
		Global2:    g2,
		Global3:    g3,
		resume: func(m *Machine, _ any) (*PendingCallout, error) {
			if continuation == nil {
				return nil, nil
			}
			return continuation(m)
		},
	}, nil
}

func (m *Machine) handleInput(line string, textBuffer, parseBuffer uint16) {
	dictionary.HandleInput(m.core, m.dict, line, textBuffer, parseBuffer)
}

// reseedRandom reseeds the RANDOM opcode's generator from the host clock.
// RANDOM(0) is the one "random" behavior this system never turns into a
// host callout: §4.7 lists PRINT*, READ, SAVE, RESTORE, USL, SPLIT,
// SCREEN, and RESTART as the only suspending opcodes.
func (m *Machine) reseedRandom() {
	m.rngState = uint32(time.Now().UnixNano())
	if m.rngState == 0 {
		m.rngState = 0xA5A5A5A5
	}
}
