package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/swingfeed/internal/domain"
)

const maxRows = 25

var (
	serverURL = flag.String("server", "http://localhost:8000", "monitor server base URL")
	gameID    = flag.String("game", "", "event id to watch")
	since     = flag.Int("since", 0, "stream offset to resume from")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	signalOne   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	signalTwo   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("201"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type resultMsg domain.PlayResult

type streamErrMsg struct{ err error }

type model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	results chan tea.Msg

	rows      []domain.PlayResult
	connected bool
	lastErr   string
}

func initialModel() model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{
		ctx:     ctx,
		cancel:  cancel,
		results: make(chan tea.Msg, 64),
	}
}

func (m model) Init() tea.Cmd {
	go streamLoop(m.ctx, m.results)
	return waitForMsg(m.results)
}

func waitForMsg(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}
	case resultMsg:
		m.connected = true
		m.lastErr = ""
		m.rows = append(m.rows, domain.PlayResult(msg))
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}
		return m, waitForMsg(m.results)
	case streamErrMsg:
		m.connected = false
		m.lastErr = msg.err.Error()
		return m, waitForMsg(m.results)
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf(" swing feed  game=%s ", *gameID)))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("waiting for plays..."))
		b.WriteString("\n")
	}
	for _, r := range m.rows {
		line := fmt.Sprintf("Q%d %-5s wp=%.3f prob=%.3f  %s", r.Quarter, r.Clock, r.WinProb, r.SwingProb, truncate(r.Description, 60))
		switch r.Signal {
		case 1:
			b.WriteString(signalOne.Render("▲ " + line))
		case 2:
			b.WriteString(signalTwo.Render("◆ " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render("stream: " + m.lastErr))
	} else if m.connected {
		b.WriteString(statusStyle.Render("connected"))
	} else {
		b.WriteString(statusStyle.Render("connecting..."))
	}
	b.WriteString(dimStyle.Render("  (q to quit)"))
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// streamLoop tails the server-sent event stream and reconnects from the
// last seen offset when the connection drops.
func streamLoop(ctx context.Context, out chan<- tea.Msg) {
	offset := *since
	for {
		n, err := streamOnce(ctx, offset, out)
		offset += n
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			out <- streamErrMsg{err: err}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func streamOnce(ctx context.Context, offset int, out chan<- tea.Msg) (int, error) {
	url := fmt.Sprintf("%s/games/%s/stream?since=%d", strings.TrimRight(*serverURL, "/"), *gameID, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stream returned %s", resp.Status)
	}

	seen := 0
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var r domain.PlayResult
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &r); err != nil {
			continue
		}
		seen++
		select {
		case out <- resultMsg(r):
		case <-ctx.Done():
			return seen, nil
		}
	}
	return seen, scanner.Err()
}

func main() {
	flag.Parse()
	if *gameID == "" {
		fmt.Fprintln(os.Stderr, "usage: swing-tui -game <event id> [-server URL] [-since N]")
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
}
