// Package tui is the terminal chat view over a session.Controller.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"huijin-agent/internal/domain"
	"huijin-agent/internal/session"
)

const (
	noticeTTL   = 3 * time.Second
	inputHeight = 3
)

// Controller is the part of session.Controller the view drives.
type Controller interface {
	Snapshot() session.State
	SetInput(text string)
	UseSuggestion(i int) bool
	Submit() (<-chan struct{}, bool)
	Clear()
	DismissNotice(id uint64)
	Subscribe(fn func(session.State))
}

type stateChangedMsg struct{}

type dismissNoticeMsg struct {
	id uint64
}

type Model struct {
	ctrl      Controller
	changes   chan struct{}
	state     session.State
	render    MarkdownRenderer
	voiceLink string

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	width       int
	height      int
	shownNotice uint64
}

type Option func(*Model)

// WithVoiceLink shows the voice-call entry in the header.
func WithVoiceLink(url string) Option {
	return func(m *Model) {
		m.voiceLink = strings.TrimSpace(url)
	}
}

func WithRenderer(r MarkdownRenderer) Option {
	return func(m *Model) {
		m.render = r
	}
}

func New(ctrl Controller, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "输入您的问题..."
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = loadingStyle

	m := Model{
		ctrl:     ctrl,
		changes:  make(chan struct{}, 1),
		render:   GlamourRenderer(),
		input:    ta,
		viewport: viewport.New(80, 20),
		spinner:  s,
	}
	for _, opt := range opts {
		opt(&m)
	}

	// Coalesce change signals; the view always reads a fresh snapshot.
	changes := m.changes
	ctrl.Subscribe(func(session.State) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	m.resize(80, 24)
	m.refresh()
	return m
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return stateChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForChange(m.changes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+l":
			m.ctrl.Clear()
			return m, nil
		case "enter":
			m.ctrl.SetInput(m.input.Value())
			if _, ok := m.ctrl.Submit(); ok {
				m.input.Reset()
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "1", "2", "3", "4":
			if m.input.Value() == "" && len(m.state.Messages) == 0 {
				idx := int(msg.Runes[0] - '1')
				if m.ctrl.UseSuggestion(idx) {
					m.input.SetValue(session.Suggestions[idx])
					return m, nil
				}
			}
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case stateChangedMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, waitForChange(m.changes))

	case dismissNoticeMsg:
		m.ctrl.DismissNotice(msg.id)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// refresh pulls the latest snapshot and schedules dismissal of a new notice.
func (m *Model) refresh() tea.Cmd {
	m.state = m.ctrl.Snapshot()
	m.viewport.SetContent(m.conversationView())
	m.viewport.GotoBottom()

	n := m.state.Notice
	if n == nil || n.ID == m.shownNotice {
		return nil
	}
	m.shownNotice = n.ID
	id := n.ID
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return dismissNoticeMsg{id: id}
	})
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(width)

	chrome := lipgloss.Height(m.headerView()) + inputHeight + 2 // status + help lines
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 3)
}

func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
		m.input.View(),
		helpStyle.Render("enter 发送 • alt+enter 换行 • ctrl+l 清空对话 • esc 退出"),
	)
}

func (m Model) headerView() string {
	header := titleStyle.Render("汇小金智能体Agent") + "  " + subtitleStyle.Render("基于DeepSeek的AI助手")
	if m.voiceLink != "" {
		header += "\n" + subtitleStyle.Render("语音通话入口: ") + linkStyle.Render(m.voiceLink)
	}
	return header
}

func (m Model) conversationView() string {
	if len(m.state.Messages) == 0 {
		return m.welcomeView()
	}

	width := max(m.viewport.Width-2, 20)
	var b strings.Builder
	for i, msg := range m.state.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		ts := timestampStyle.Render(msg.Timestamp.Format("15:04"))
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userLabelStyle.Render("你") + " " + ts + "\n")
			b.WriteString(userMessageStyle.Width(width).Render(msg.Content))
		default:
			b.WriteString(assistantLabelStyle.Render("汇小金") + " " + ts + "\n")
			b.WriteString(m.render(msg.Content, width))
		}
	}
	return b.String()
}

func (m Model) welcomeView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("欢迎使用汇小金智能体") + "\n")
	b.WriteString("hi，欢迎来到汇金国际商务社区，我是汇金智能体，有什么企业服务相关问题都可以咨询我。\n\n")
	for i, s := range session.Suggestions {
		fmt.Fprintf(&b, "%s %s\n", suggestionKeyStyle.Render(fmt.Sprintf("[%d]", i+1)), s)
	}
	return b.String()
}

func (m Model) statusView() string {
	switch m.state.Phase {
	case session.PhaseSearching:
		return m.spinner.View() + " " + loadingStyle.Render(fmt.Sprintf("汇金知识库搜索中... %ds", m.state.Countdown))
	case session.PhaseGenerating:
		return m.spinner.View() + " " + loadingStyle.Render("生成中...")
	}
	if n := m.state.Notice; n != nil {
		if n.Kind == session.NoticeError {
			return errorNoticeStyle.Render("✗ " + n.Text)
		}
		return successNoticeStyle.Render("✓ " + n.Text)
	}
	return ""
}
