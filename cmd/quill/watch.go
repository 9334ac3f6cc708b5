package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/flow"
	"github.com/quillworks/quill/internal/patch"
	"github.com/quillworks/quill/internal/stream"
)

// runWatch sends one document-agent instruction through the gateway and
// renders the relayed event stream as a live execution timeline. The TUI
// folds the same normalized events the browser surface would, into a local
// timeline and document mirror.
func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiBase := fs.String("api", envOr("QUILL_API_URL", "http://127.0.0.1:8070"), "base URL for the quill gateway")
	token := fs.String("token", os.Getenv("QUILL_API_TOKEN"), "Bearer token for gateway auth")
	docPath := fs.String("doc", "", "HTML document file to edit (optional)")
	outPath := fs.String("out", "", "write the resulting document HTML to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	instruction := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if instruction == "" {
		return fmt.Errorf("usage: quill watch [--api <url>] [--token <token>] [--doc <file>] [--out <file>] <instruction>")
	}
	if strings.TrimSpace(*token) == "" {
		return fmt.Errorf("token is required (use --token or QUILL_API_TOKEN)")
	}

	var docHTML string
	if *docPath != "" {
		raw, err := readAllFile(*docPath)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		docHTML = string(raw)
	}

	cfg := watchConfig{
		APIBase:     strings.TrimRight(*apiBase, "/"),
		Token:       *token,
		Instruction: instruction,
		DocHTML:     docHTML,
		OutPath:     *outPath,
	}

	p := tea.NewProgram(newWatchModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type watchConfig struct {
	APIBase     string
	Token       string
	Instruction string
	DocHTML     string
	OutPath     string
}

// relayEventMsg carries one named SSE event from the gateway relay.
type relayEventMsg struct {
	Event string
	Data  []byte
	Err   error
	EOF   bool
}

type streamStartedMsg struct{}

// relayEnd mirrors the gateway's session_end payload.
type relayEnd struct {
	State        string `json:"state"`
	DocumentHTML string `json:"document_html"`
	Frames       int    `json:"frames"`
	ParseErrors  int    `json:"parse_errors"`
}

type watchModel struct {
	cfg      watchConfig
	events   chan relayEventMsg
	handlers stream.Handlers
	timeline *accum.Timeline
	doc      *editor.Document
	af       *flow.AgentFlow

	width     int
	height    int
	connected bool
	done      bool
	state     string
	failure   string
	saved     bool
	err       error
}

func newWatchModel(cfg watchConfig) watchModel {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	doc := editor.NewDocument()
	doc.SetContent(cfg.DocHTML)
	timeline := accum.NewTimeline(logger, nil)
	af := flow.NewAgentFlow(timeline, patch.NewDispatcher(doc, logger))

	return watchModel{
		cfg:      cfg,
		events:   make(chan relayEventMsg, 32),
		handlers: af.Handlers(),
		timeline: timeline,
		doc:      doc,
		af:       af,
		state:    "connecting",
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		startAgentStreamCmd(m.cfg, m.events),
		waitForRelayEventCmd(m.events),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case streamStartedMsg:
		m.connected = true
		m.state = "active"
		return m, nil
	case relayEventMsg:
		if msg.Err != nil {
			m.err = msg.Err
			m.done = true
			return m, nil
		}
		if msg.EOF {
			m.done = true
			if m.state == "active" || m.state == "connecting" {
				m.state = "closed"
			}
			return m, nil
		}
		m.handleEvent(msg.Event, msg.Data)
		if m.done {
			return m, nil
		}
		return m, waitForRelayEventCmd(m.events)
	default:
		return m, nil
	}
}

func (m *watchModel) handleEvent(name string, data []byte) {
	switch name {
	case "session_end":
		var end relayEnd
		if err := json.Unmarshal(data, &end); err == nil {
			m.state = end.State
			if m.cfg.OutPath != "" && end.DocumentHTML != "" {
				if err := os.WriteFile(m.cfg.OutPath, []byte(end.DocumentHTML), 0o644); err != nil {
					m.err = fmt.Errorf("write %s: %w", m.cfg.OutPath, err)
				} else {
					m.saved = true
				}
			}
		}
		m.done = true
	case "session_error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
			payload.Message = "unknown stream error"
		}
		m.failure = payload.Message
	default:
		ev, err := event.Decode(event.Kind(name), data)
		if err != nil {
			return
		}
		stream.Dispatch(m.handlers, ev)
	}
}

func (m watchModel) View() string {
	accent := lipgloss.Color("#7C3AED")
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F5F3FF")).
		Background(accent).
		Padding(0, 1).
		Render("Quill Agent")

	statusStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F5F3FF")).
		Background(accent).
		Padding(0, 1)
	switch m.state {
	case "connecting":
		statusStyle = statusStyle.Background(lipgloss.Color("#6B7280"))
	case "completed":
		statusStyle = statusStyle.Background(lipgloss.Color("#22C55E"))
	case "failed", "aborted":
		statusStyle = statusStyle.Background(lipgloss.Color("#EF4444"))
	}
	status := statusStyle.Render(strings.ToUpper(m.state))

	meta := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#A78BFA")).
		Render(fmt.Sprintf("api=%s  stream=%s", m.cfg.APIBase, connectionLabel(m.connected, m.done, m.err)))

	panelWidth := bodyWidth(m.width)
	timelineHeight, todoHeight := panelHeights(m.height)

	timelinePanel := renderPanel("Timeline", m.timelineLines(), panelWidth, timelineHeight, accent, false)
	todoPanel := renderPanel("Checklist", m.todoLines(), panelWidth, todoHeight, accent, true)

	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#A78BFA")).
		Render("q: quit")
	if m.failure != "" {
		footer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Render("error: " + m.failure + "  q: quit")
	} else if m.err != nil {
		footer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Render("error: " + m.err.Error() + "  q: quit")
	} else if m.saved {
		footer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A78BFA")).
			Render("document saved to " + m.cfg.OutPath + "  q: quit")
	}

	return strings.Join([]string{title + " " + status, meta, timelinePanel, todoPanel, footer}, "\n")
}

// timelineLines flattens the execution timeline into display lines, newest
// last. The status line, when set, leads the panel.
func (m watchModel) timelineLines() []string {
	var lines []string
	if st := m.timeline.Status(); st.Message != "" || st.Phase != "" {
		line := st.Message
		if line == "" {
			line = st.Phase
		}
		if st.TotalSteps > 0 {
			line += fmt.Sprintf(" (%d/%d)", st.CurrentStep, st.TotalSteps)
		}
		lines = append(lines, "» "+line, "")
	}

	for _, block := range m.timeline.Blocks() {
		switch block.Kind {
		case accum.BlockContent:
			lines = append(lines, splitLines(block.Text)...)
		case accum.BlockThinking:
			for _, l := range splitLines(block.Text) {
				lines = append(lines, "· "+l)
			}
		case accum.BlockToolUse:
			if block.Tool == nil {
				continue
			}
			line := fmt.Sprintf("⚙ %s [%s]", block.Tool.Name, block.Tool.Status)
			if block.Tool.IsError {
				line += " error"
			}
			lines = append(lines, line)
			if block.Tool.Result != "" {
				lines = append(lines, "  "+trimForLog(block.Tool.Result, 100))
			}
		case accum.BlockTurnSeparator:
			lines = append(lines, fmt.Sprintf("── turn %d ──", block.Turn))
		case accum.BlockDocUpdate:
			if block.Doc == nil {
				continue
			}
			line := fmt.Sprintf("✎ %s section %d", block.Doc.Operation, block.Doc.SectionIndex)
			if block.Doc.Title != "" {
				line += ": " + block.Doc.Title
			}
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		lines = []string{"waiting for events..."}
	}
	return lines
}

func (m watchModel) todoLines() []string {
	todos := m.timeline.Todos()
	if len(todos) == 0 {
		return []string{"no checklist yet"}
	}
	lines := make([]string, 0, len(todos))
	for _, item := range todos {
		mark := "[ ]"
		switch item.Status {
		case "in_progress", "running":
			mark = "[~]"
		case "completed", "done":
			mark = "[x]"
		case "error":
			mark = "[!]"
		}
		line := fmt.Sprintf("%s %s", mark, item.Label)
		if item.Error != "" {
			line += " — " + trimForLog(item.Error, 60)
		}
		lines = append(lines, line)
	}
	return lines
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func panelHeights(terminalHeight int) (timeline, todos int) {
	available := terminalHeight - 4
	if available < 12 {
		available = 12
	}
	todos = 6
	timeline = available - todos
	if timeline < 6 {
		timeline = 6
	}
	return timeline, todos
}

func renderPanel(title string, lines []string, width, height int, accent lipgloss.Color, keepHead bool) string {
	if height < 3 {
		height = 3
	}
	contentHeight := height - 1
	if len(lines) > contentHeight {
		if keepHead {
			lines = lines[:contentHeight]
		} else {
			lines = lines[len(lines)-contentHeight:]
		}
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	content := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title) + "\n" + strings.Join(lines, "\n")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Width(width).
		Height(height).
		Padding(0, 1).
		Render(content)
}

func bodyWidth(terminalWidth int) int {
	if terminalWidth <= 0 {
		return 80
	}
	w := terminalWidth - 2
	if w < 40 {
		return 40
	}
	return w
}

func trimForLog(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func connectionLabel(connected, done bool, err error) string {
	if err != nil {
		return "error"
	}
	if done {
		return "closed"
	}
	if connected {
		return "open"
	}
	return "connecting"
}

func startAgentStreamCmd(cfg watchConfig, out chan relayEventMsg) tea.Cmd {
	return func() tea.Msg {
		go streamAgentEvents(cfg, out)
		return streamStartedMsg{}
	}
}

func waitForRelayEventCmd(in <-chan relayEventMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-in
		if !ok {
			return relayEventMsg{EOF: true}
		}
		return msg
	}
}

// streamAgentEvents posts the instruction to the gateway and forwards each
// named SSE event to the model.
func streamAgentEvents(cfg watchConfig, out chan<- relayEventMsg) {
	defer close(out)

	payload, err := json.Marshal(map[string]string{
		"instruction":   cfg.Instruction,
		"document_html": cfg.DocHTML,
	})
	if err != nil {
		out <- relayEventMsg{Err: fmt.Errorf("marshal request: %w", err)}
		return
	}

	req, err := http.NewRequest(http.MethodPost, cfg.APIBase+"/v1/agent", bytes.NewReader(payload))
	if err != nil {
		out <- relayEventMsg{Err: fmt.Errorf("create request: %w", err)}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		out <- relayEventMsg{Err: fmt.Errorf("connect stream: %w", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		out <- relayEventMsg{Err: fmt.Errorf("stream request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)

	var eventName string
	var dataLines []string

	flushEvent := func() {
		if len(dataLines) == 0 {
			eventName = ""
			return
		}
		if eventName == "" {
			eventName = "message"
		}
		out <- relayEventMsg{
			Event: eventName,
			Data:  []byte(strings.Join(dataLines, "\n")),
		}
		eventName = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flushEvent()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			part := strings.TrimPrefix(line, "data:")
			part = strings.TrimPrefix(part, " ")
			dataLines = append(dataLines, part)
		}
	}
	flushEvent()

	if err := scanner.Err(); err != nil {
		out <- relayEventMsg{Err: fmt.Errorf("read stream: %w", err)}
		return
	}
	out <- relayEventMsg{EOF: true}
}
