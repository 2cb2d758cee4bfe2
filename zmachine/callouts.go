package zmachine

import "fmt"

// CalloutKind tags the reason a Step call suspended.
type CalloutKind uint8

const (
	CalloutPrint CalloutKind = iota
	CalloutRead
	CalloutSave
	CalloutRestore
	CalloutStatus
	CalloutSplit
	CalloutScreen
	CalloutRestarted
	CalloutHighlight
	CalloutQuit
)

func (k CalloutKind) String() string {
	switch k {
	case CalloutPrint:
		return "print"
	case CalloutRead:
		return "read"
	case CalloutSave:
		return "save"
	case CalloutRestore:
		return "restore"
	case CalloutStatus:
		return "status"
	case CalloutSplit:
		return "split"
	case CalloutScreen:
		return "screen"
	case CalloutRestarted:
		return "restarted"
	case CalloutHighlight:
		return "highlight"
	case CalloutQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// PendingCallout is a request from the engine to the host, returned from
// Step or Resume. Only the fields relevant to Kind are populated. The host
// answers by calling Resume with the result appropriate to Kind (see the
// comment on each field below).
type PendingCallout struct {
	Kind CalloutKind

	// CalloutPrint
	Text      string
	Scripting bool // Resume(nil)

	// CalloutRead
	MaxLen int // Resume(string)

	// CalloutSave
	SaveBlob []byte // Resume(bool)

	// CalloutRestore
	// (no payload)          // Resume([]byte or nil)

	// CalloutStatus (USL)
	StatusText      string
	Global2, Global3 uint16 // Resume(nil)

	// CalloutSplit
	Height int // Resume(nil)

	// CalloutScreen
	Window int // Resume(nil)

	// CalloutHighlight
	FixedPitch bool // Resume(nil)

	// CalloutRestarted
	// (no payload)          // Resume(nil)

	resume func(*Machine, any) (*PendingCallout, error)
}

// Resume delivers the host's answer to the pending callout and continues
// execution of the instruction that suspended. It returns nil, nil when
// that instruction (and any chained callout it triggered) has fully
// completed; the caller then calls Step again for the next instruction.
func (m *Machine) Resume(result any) (*PendingCallout, error) {
	if m.pending == nil {
		return nil, fmt.Errorf("zmachine: Resume called with no pending callout")
	}
	p := m.pending
	m.pending = nil

	next, err := p.resume(m, result)
	if err != nil {
		return nil, err
	}
	if next != nil {
		m.pending = next
	}
	return next, nil
}

// doPrint emits text through the print callout (preceded by a highlight
// callout if the fixed-pitch mode bit has changed since the last print),
// then runs continuation once the host has acknowledged.
func (m *Machine) doPrint(text string, continuation func(*Machine) (*PendingCallout, error)) (*PendingCallout, error) {
	if cur := m.core.FixedPitch(); cur != m.fixedPitch {
		m.fixedPitch = cur
		return &PendingCallout{
			Kind:       CalloutHighlight,
			FixedPitch: cur,
			resume: func(m *Machine, _ any) (*PendingCallout, error) {
				return m.printCallout(text, continuation)
			},
		}, nil
	}
	return m.printCallout(text, continuation)
}

func (m *Machine) printCallout(text string, continuation func(*Machine) (*PendingCallout, error)) (*PendingCallout, error) {
	return &PendingCallout{
		Kind:      CalloutPrint,
		Text:      text,
		Scripting: m.core.Scripting(),
		resume: func(m *Machine, _ any) (*PendingCallout, error) {
			if continuation == nil {
				return nil, nil
			}
			return continuation(m)
		},
	}, nil
}
