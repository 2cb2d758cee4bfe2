// Command play is the interactive terminal host: a Bubble Tea adapter that
// turns the engine's synchronous Step/Resume contract into the suspend-on-
// callout model the terminal UI needs. Exactly one PendingCallout is ever
// in flight; the engine goroutine blocks on it until the UI answers.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"goz3/zmachine"
)

var (
	romFilePath string
	saveDir     string

	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	statusMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}).
				Render

	fixedPitchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

const transcriptWidth = 78

// calloutMsg and engineErrMsg are how the engine goroutine hands control back to
// the Bubble Tea event loop.
type calloutMsg *zmachine.PendingCallout
type engineErrMsg struct{ error }

type appState int

const (
	appRunning appState = iota
	appWaitingForInput
)

type applicationModel struct {
	machine *zmachine.Machine

	requests  <-chan calloutMsg
	responses chan<- any
	errs      <-chan engineErrMsg

	romPath    string
	savePath   string
	transcript strings.Builder
	statusLine string
	appState   appState
	inputBox   textinput.Model
	fixedPitch bool
}

func (m applicationModel) Init() tea.Cmd {
	return tea.Batch(
		waitForCallout(m.requests),
		waitForEngineErr(m.errs),
		tea.SetWindowTitle(m.romPath),
	)
}

func waitForCallout(requests <-chan calloutMsg) tea.Cmd {
	return func() tea.Msg { return <-requests }
}

func waitForEngineErr(errs <-chan engineErrMsg) tea.Cmd {
	return func() tea.Msg { return <-errs }
}

func (m applicationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter && m.appState == appWaitingForInput {
			line := m.inputBox.Value()
			m.transcript.WriteString("> " + line + "\n")
			m.inputBox.SetValue("")
			m.appState = appRunning
			m.responses <- line
			return m, nil
		}
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

	case engineErrMsg:
		m.transcript.WriteString("\n[interpreter error: " + msg.Error() + "]\n")
		return m, nil

	case calloutMsg:
		return m.handleCallout(msg)
	}

	var cmd tea.Cmd
	if m.appState == appWaitingForInput {
		m.inputBox, cmd = m.inputBox.Update(msg)
	}
	return m, cmd
}

// handleCallout answers the pending callout, almost always synchronously,
// and resumes waiting for the next one. CalloutRead is the one case that
// parks the model until the user presses Enter.
func (m applicationModel) handleCallout(p *zmachine.PendingCallout) (tea.Model, tea.Cmd) {
	switch p.Kind {
	case zmachine.CalloutPrint:
		m.transcript.WriteString(wordwrap.String(p.Text, transcriptWidth))
		m.responses <- nil
		return m, waitForCallout(m.requests)

	case zmachine.CalloutHighlight:
		m.fixedPitch = p.FixedPitch
		m.responses <- nil
		return m, waitForCallout(m.requests)

	case zmachine.CalloutRead:
		m.appState = appWaitingForInput
		m.inputBox.CharLimit = p.MaxLen
		m.inputBox.Focus()
		return m, nil // responses is sent from the KeyEnter handler above

	case zmachine.CalloutStatus:
		m.statusLine = fmt.Sprintf("%-40s  %d / %d", p.StatusText, p.Global2, p.Global3)
		m.responses <- nil
		return m, waitForCallout(m.requests)

	case zmachine.CalloutSave:
		ok := writeSaveFile(m.savePath, p.SaveBlob) == nil
		m.responses <- ok
		return m, waitForCallout(m.requests)

	case zmachine.CalloutRestore:
		blob, err := os.ReadFile(m.savePath)
		if err != nil {
			m.responses <- []byte(nil)
		} else {
			m.responses <- blob
		}
		return m, waitForCallout(m.requests)

	case zmachine.CalloutRestarted:
		m.transcript.Reset()
		m.responses <- nil
		return m, waitForCallout(m.requests)

	case zmachine.CalloutSplit, zmachine.CalloutScreen:
		// No separate upper/lower window panes in this host; acknowledge
		// and keep everything in the single transcript pane.
		m.responses <- nil
		return m, waitForCallout(m.requests)

	case zmachine.CalloutQuit:
		return m, tea.Quit

	default:
		m.responses <- nil
		return m, waitForCallout(m.requests)
	}
}

func writeSaveFile(path string, blob []byte) error {
	return os.WriteFile(path, blob, 0644)
}

func (m applicationModel) View() string {
	var s strings.Builder
	if m.statusLine != "" {
		style := titleStyle
		if m.fixedPitch {
			style = fixedPitchStyle
		}
		s.WriteString(style.Render(m.statusLine))
		s.WriteString("\n")
	}
	s.WriteString(appStyle.Render(m.transcript.String()))
	if m.appState == appWaitingForInput {
		s.WriteString(appStyle.Render(m.inputBox.View()))
	}
	return s.String()
}

// runEngine drives Step/Resume in its own goroutine, one callout at a time,
// handing each to the UI over requests and blocking on responses until the
// UI answers it. It mirrors the teacher's tight-loop-goroutine shape but
// generalized over every suspending opcode instead of just text output.
func runEngine(m *zmachine.Machine, requests chan<- calloutMsg, responses <-chan any, errs chan<- engineErrMsg) {
	callout, err := m.Step()
	for {
		if err != nil {
			errs <- engineErrMsg{err}
			return
		}
		if callout == nil {
			callout, err = m.Step()
			continue
		}
		requests <- callout
		result := <-responses
		callout, err = m.Resume(result)
	}
}

func init() {
	flag.StringVar(&romFilePath, "rom", "zork1.z3", "The path of a z-machine story file")
	flag.StringVar(&saveDir, "savedir", ".", "Directory to write/read .sav files")
	flag.Parse()
}

func main() {
	romBytes, err := os.ReadFile(romFilePath)
	if err != nil {
		fmt.Println("Error reading rom:", err)
		os.Exit(1)
	}

	machine, err := zmachine.New(romBytes, 0, false)
	if err != nil {
		fmt.Println("Error loading rom:", err)
		os.Exit(1)
	}

	requests := make(chan calloutMsg)
	responses := make(chan any)
	errs := make(chan engineErrMsg, 1)
	go runEngine(machine, requests, responses, errs)

	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60
	ti.Prompt = "> "

	base := romFilePath
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}

	model := applicationModel{
		machine:   machine,
		requests:  requests,
		responses: responses,
		errs:      errs,
		romPath:   romFilePath,
		savePath:  saveDir + "/" + strings.TrimSuffix(base, ".z3") + ".sav",
		appState:  appRunning,
		inputBox:  ti,
	}

	if _, err := tea.NewProgram(model).Run(); err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}
