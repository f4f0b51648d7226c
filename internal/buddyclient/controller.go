package buddyclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultHistoryTimeout = 10 * time.Second
	DefaultSendTimeout    = 18 * time.Second
	DefaultResetTimeout   = 8 * time.Second
)

const (
	// ApologyMessage se muestra como respuesta de Buddy cuando el envio falla del lado cliente.
	ApologyMessage = "Sorry, I couldn’t respond right now. Please try again in a moment."

	emptyReplyText    = "…"
	resetFailedNotice = "Couldn't clear the chat. Please try again."
	inputCharLimit    = 4000
	chromeHeight      = 5
	minContentHeight  = 5
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	meStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	aiStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Relay es lo que el controller necesita del servidor. *Client lo implementa.
type Relay interface {
	History(ctx context.Context) ([]Turn, error)
	Send(ctx context.Context, message string) (string, error)
	Reset(ctx context.Context) error
}

type Options struct {
	HistoryTimeout time.Duration
	SendTimeout    time.Duration
	ResetTimeout   time.Duration
	Title          string
}

// Bubble es una burbuja renderizada del transcript.
type Bubble struct {
	Assistant bool
	Text      string
}

// Controller es la maquina de estados del chat en la terminal.
// Corre en el loop de Update de bubbletea; las llamadas al relay viajan como tea.Cmd
// y vuelven como mensajes marcados con la epoca en que salieron.
type Controller struct {
	relay Relay
	opts  Options

	transcript     []Bubble
	loadingHistory bool
	pending        int
	resetting      bool
	// epoch sube con cada reset confirmado; respuestas de epocas anteriores se descartan.
	epoch        uint64
	lastNonFatal error
	notice       string

	input   textinput.Model
	spinner spinner.Model
	view    viewport.Model
	width   int
	height  int
}

type (
	historyLoadedMsg struct {
		epoch uint64
		turns []Turn
		err   error
	}
	replyMsg struct {
		epoch uint64
		reply string
		err   error
	}
	resetDoneMsg struct {
		err error
	}
)

func NewController(relay Relay, opts Options) Controller {
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = DefaultHistoryTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = DefaultResetTimeout
	}
	if opts.Title == "" {
		opts.Title = "Buddy"
	}

	input := textinput.New()
	input.Placeholder = "Ask Buddy about your money…"
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = 76
	input.Prompt = "> "

	return Controller{
		relay:          relay,
		opts:           opts,
		loadingHistory: true,
		input:          input,
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot)),
		view:           viewport.New(80, 20),
		width:          80,
		height:         25,
	}
}

func (c Controller) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, c.loadHistoryCmd())
}

func (c Controller) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return c, tea.Quit
		case tea.KeyEnter:
			return c.submit(c.input.Value())
		case tea.KeyCtrlR:
			return c.reset()
		}

	case tea.WindowSizeMsg:
		c.resize(msg.Width, msg.Height)

	case historyLoadedMsg:
		c.applyHistory(msg)

	case replyMsg:
		c.applyReply(msg)

	case resetDoneMsg:
		c.applyReset(msg)

	case spinner.TickMsg:
		if c.pending > 0 {
			var cmd tea.Cmd
			c.spinner, cmd = c.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return c, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	cmds = append(cmds, cmd)
	c.refresh()
	return c, tea.Batch(cmds...)
}

func (c Controller) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(c.opts.Title))
	b.WriteString("\n")
	b.WriteString(c.view.View())
	b.WriteString("\n")

	switch {
	case c.pending > 0:
		b.WriteString(c.spinner.View() + dimStyle.Render(" Buddy is typing…"))
	case c.resetting:
		b.WriteString(dimStyle.Render("Clearing chat…"))
	case c.notice != "":
		b.WriteString(noticeStyle.Render(c.notice))
	}
	b.WriteString("\n")
	b.WriteString(c.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter send • ctrl+r reset • esc quit"))
	return b.String()
}

// submit pinta el mensaje del usuario de inmediato y dispara el envio.
// Un texto vacio tras el trim no hace nada.
func (c Controller) submit(raw string) (Controller, tea.Cmd) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return c, nil
	}
	c.input.SetValue("")
	c.notice = ""
	c.transcript = append(c.transcript, Bubble{Text: text})
	c.pending++

	cmds := []tea.Cmd{c.sendCmd(text)}
	if c.pending == 1 {
		cmds = append(cmds, c.spinner.Tick)
	}
	c.refresh()
	return c, tea.Batch(cmds...)
}

// reset deshabilita el control mientras dura la llamada.
func (c Controller) reset() (Controller, tea.Cmd) {
	if c.resetting {
		return c, nil
	}
	c.resetting = true
	c.notice = ""
	return c, c.resetCmd()
}

func (c *Controller) applyHistory(msg historyLoadedMsg) {
	if msg.epoch != c.epoch {
		return
	}
	c.loadingHistory = false
	if msg.err != nil {
		// No es fatal: el chat sigue vacio y no se muestra error.
		c.lastNonFatal = fmt.Errorf("load history: %w", msg.err)
		return
	}
	loaded := make([]Bubble, 0, len(msg.turns)+len(c.transcript))
	for _, t := range msg.turns {
		loaded = append(loaded, Bubble{
			Assistant: strings.EqualFold(strings.TrimSpace(t.Role), "assistant"),
			Text:      t.Text,
		})
	}
	c.transcript = append(loaded, c.transcript...)
}

func (c *Controller) applyReply(msg replyMsg) {
	if msg.epoch != c.epoch {
		return
	}
	if c.pending > 0 {
		c.pending--
	}
	text := msg.reply
	if msg.err != nil {
		text = ApologyMessage
	} else if strings.TrimSpace(text) == "" {
		text = emptyReplyText
	}
	c.transcript = append(c.transcript, Bubble{Assistant: true, Text: text})
}

// applyReset limpia el transcript solo si el servidor confirmo el reset.
func (c *Controller) applyReset(msg resetDoneMsg) {
	c.resetting = false
	if msg.err != nil {
		c.notice = resetFailedNotice
		c.lastNonFatal = fmt.Errorf("reset chat: %w", msg.err)
		return
	}
	c.epoch++
	c.transcript = nil
	c.pending = 0
	c.loadingHistory = false
}

func (c Controller) loadHistoryCmd() tea.Cmd {
	relay, timeout, epoch := c.relay, c.opts.HistoryTimeout, c.epoch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		turns, err := relay.History(ctx)
		return historyLoadedMsg{epoch: epoch, turns: turns, err: err}
	}
}

func (c Controller) sendCmd(text string) tea.Cmd {
	relay, timeout, epoch := c.relay, c.opts.SendTimeout, c.epoch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := relay.Send(ctx, text)
		return replyMsg{epoch: epoch, reply: reply, err: err}
	}
}

func (c Controller) resetCmd() tea.Cmd {
	relay, timeout := c.relay, c.opts.ResetTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return resetDoneMsg{err: relay.Reset(ctx)}
	}
}

func (c *Controller) resize(width, height int) {
	c.width, c.height = width, height
	c.view.Width = width
	c.view.Height = max(height-chromeHeight, minContentHeight)
	c.input.Width = max(width-4, 10)
}

func (c *Controller) refresh() {
	c.view.SetContent(c.renderTranscript())
	c.view.GotoBottom()
}

func (c Controller) renderTranscript() string {
	if len(c.transcript) == 0 {
		if c.loadingHistory {
			return dimStyle.Render("Loading your chat…")
		}
		return dimStyle.Render("Say hi to Buddy. Ask about budgets, savings or spending.")
	}
	wrap := lipgloss.NewStyle().Width(max(c.width-2, 20))
	lines := make([]string, 0, len(c.transcript))
	for _, b := range c.transcript {
		if b.Assistant {
			lines = append(lines, wrap.Render(aiStyle.Render("Buddy: ")+b.Text))
			continue
		}
		lines = append(lines, wrap.Render(meStyle.Render("You: ")+b.Text))
	}
	return strings.Join(lines, "\n\n")
}

// Transcript devuelve una copia de lo que se esta mostrando.
func (c Controller) Transcript() []Bubble {
	out := make([]Bubble, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c Controller) Pending() int         { return c.pending }
func (c Controller) Resetting() bool      { return c.resetting }
func (c Controller) LoadingHistory() bool { return c.loadingHistory }
func (c Controller) Notice() string       { return c.notice }

// LastNonFatal es el ultimo error que se absorbio sin mostrarse como burbuja
// (carga de historial o reset fallido).
func (c Controller) LastNonFatal() error { return c.lastNonFatal }
