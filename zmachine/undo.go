package zmachine

// maxUndoDepth bounds the in-session undo ring so a long play session
// doesn't grow it unboundedly; one entry is already a full dynamic-memory
// snapshot.
const maxUndoDepth = 16

// undoCache is an in-memory ring of serialized snapshots, separate from
// SAVE/RESTORE (which hand a blob to the host). It backs the UNDO verb
// some games expect even though Version 3 has no dedicated opcode for it.
type undoCache struct {
	states [][]byte
}

func (c *undoCache) push(blob []byte) {
	c.states = append(c.states, blob)
	if len(c.states) > maxUndoDepth {
		c.states = c.states[len(c.states)-maxUndoDepth:]
	}
}

func (c *undoCache) pop() ([]byte, bool) {
	if len(c.states) == 0 {
		return nil, false
	}
	n := len(c.states) - 1
	blob := c.states[n]
	c.states = c.states[:n]
	return blob, true
}

// SaveUndo snapshots the current machine state onto the undo ring.
func (m *Machine) SaveUndo() {
	m.undo.push(m.Serialize())
}

// RestoreUndo pops the most recent undo snapshot and restores it, reporting
// whether one was available.
func (m *Machine) RestoreUndo() (bool, error) {
	blob, ok := m.undo.pop()
	if !ok {
		return false, nil
	}
	if err := m.Deserialize(blob); err != nil {
		return false, err
	}
	return true, nil
}
