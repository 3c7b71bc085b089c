// internal/tui/chat.go
// Package tui is the terminal chat UI: a question box, a submit and clear key,
// and a read-only answer pane.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/pipeline"
)

// Answerer produces an answer for one question. *pipeline.Pipeline implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) (pipeline.AnswerResult, error)
}

// model is the Bubble Tea model for the chat screen.
type model struct {
	ctx              context.Context
	answerer         Answerer
	info             Info
	textArea         textarea.Model
	viewport         viewport.Model
	spinner          spinner.Model
	busy             bool
	err              error
	answer           string
	width, height    int
	requestStartTime time.Time
}

// answerMsg carries a finished answer back to the model.
type answerMsg struct{ result pipeline.AnswerResult }

// answerErr carries a failed answer back to the model.
type answerErr struct{ error }

func initialModel(ctx context.Context, answerer Answerer, info Info) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "質問を入力してください"
	ta.Focus()
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(5)

	vp := viewport.New(100, 10)
	vp.SetContent(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("回答がここに表示されます"))

	return &model{
		ctx:      ctx,
		answerer: answerer,
		info:     info,
		textArea: ta,
		viewport: vp,
		spinner:  s,
	}
}

func answerCmd(ctx context.Context, answerer Answerer, question string) tea.Cmd {
	return func() tea.Msg {
		result, err := answerer.Answer(ctx, question)
		if err != nil {
			logging.LogEvent("answer failed: %v", err)
			return answerErr{err}
		}
		return answerMsg{result}
	}
}

// Init starts the cursor blinking.
func (m *model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles key presses, window resizes and answer results.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+s":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.err = nil
			m.requestStartTime = time.Now()
			return m, tea.Batch(m.spinner.Tick, answerCmd(m.ctx, m.answerer, m.textArea.Value()))
		case "ctrl+l":
			m.textArea.Reset()
			m.answer = ""
			m.err = nil
			m.viewport.SetContent("")
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		inputHeight := m.textArea.Height() + 3
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-inputHeight, 3)

	case answerMsg:
		m.busy = false
		m.answer = msg.result.Display()
		m.viewport.SetContent(lipgloss.NewStyle().Width(max(m.viewport.Width-2, 20)).Render(m.answer))
		m.viewport.GotoTop()
		m.textArea.Focus()
		return m, nil

	case answerErr:
		m.busy = false
		m.err = msg.error
		m.textArea.Focus()
		return m, nil
	}

	m.textArea, cmd = m.textArea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.busy {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View renders the chat screen.
func (m *model) View() string {
	var b strings.Builder

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, renderTitleBadge(), renderModelBadge(m.info), renderStoreBadge(m.info)))
	b.WriteString("\n\n")
	b.WriteString(m.textArea.View())
	b.WriteString("\n")

	help := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(" (ctrl+s submit, ctrl+l clear, esc quit)")
	switch {
	case m.busy:
		elapsed := time.Since(m.requestStartTime).Seconds()
		b.WriteString(fmt.Sprintf("%s Thinking... %.1fs", m.spinner.View(), elapsed))
	case m.err != nil:
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	default:
		b.WriteString(help)
	}
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	return b.String()
}

// Run starts the terminal UI and blocks until the user quits or ctx is canceled.
func Run(ctx context.Context, answerer Answerer, info Info) error {
	m := initialModel(ctx, answerer, info)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}
