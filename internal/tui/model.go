package tui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"plower/internal/display"
	"plower/internal/docstore"
	"plower/internal/domain"
	"plower/internal/ocr"
	"plower/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ask(ctx context.Context, req service.AskRequest, onPartial func(string)) (*service.Answer, error)
	Upload(ctx context.Context, paths []string) (docstore.UploadResult, error)
	PasteImage(ctx context.Context, image []byte, onProgress func(ocr.Progress)) (*domain.Document, error)
	SavePaste(ctx context.Context, pasteText string) (domain.Document, error)
	Reset(ctx context.Context) error
	Documents() []domain.Document
	Pending() []domain.Document
	ClearCredential(ctx context.Context) error
}

// Options configures a new Model.
type Options struct {
	Model       string
	CloudModels []string
}

type page int

const (
	pageChat page = iota
	pageDocs
	pageDocument
)

type inputMode int

const (
	modeChat inputMode = iota
	modeCredential
	modeConfirm
)

type exchange struct {
	model    string
	question string
	answer   string
	sources  []string
	failed   bool
	complete bool
}

// eventMsg wraps everything delivered through the worker channel.
type eventMsg struct{ msg tea.Msg }

type (
	partialMsg     string
	ocrProgressMsg ocr.Progress
	answerMsg      struct {
		ans *service.Answer
		err error
	}
	uploadMsg struct {
		res docstore.UploadResult
		err error
	}
	ocrDoneMsg struct {
		doc *domain.Document
		err error
	}
	savedMsg struct {
		doc domain.Document
		err error
	}
	resetMsg struct {
		done bool
		err  error
	}
	keyClearedMsg struct{ err error }
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx        context.Context
	service    RAGPort
	interactor *Interactor
	events     chan tea.Msg

	input    textinput.Model
	secret   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	progress progress.Model

	modelID string
	cloud   []string
	paste   string
	chat    []exchange
	page    page
	shown   domain.Document

	mode       inputMode
	credential *credentialRequest
	confirm    *confirmRequest

	asking  bool
	working string
	ocr     *ocr.Progress
	status  string
	ready   bool
}

// New creates a new TUI model instance. Prompts raised through interactor
// are answered in the input line.
func New(ctx context.Context, svc RAGPort, interactor *Interactor, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question or type /help"
	ti.Focus()
	ti.CharLimit = 0

	secret := textinput.New()
	secret.Prompt = "key> "
	secret.EchoMode = textinput.EchoPassword
	secret.CharLimit = 0

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(busyStyle))
	vp := viewport.New(0, 0)
	return Model{
		ctx:        ctx,
		service:    svc,
		interactor: interactor,
		events:     interactor.events,
		input:      ti,
		secret:     secret,
		viewport:   vp,
		spinner:    sp,
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		modelID:    opts.Model,
		cloud:      opts.CloudModels,
		status:     fmt.Sprintf("%d document(s) loaded. Type /help for commands.", len(svc.Documents())),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listen())
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 2 + qh + 1 // header, info, status, progress, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case eventMsg:
		var cmd tea.Cmd
		m, cmd = m.handleEvent(msg.msg)
		return m, tea.Batch(cmd, m.listen())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.declinePending()
			return m, tea.Quit
		}
		switch m.mode {
		case modeCredential:
			return m.updateCredential(msg)
		case modeConfirm:
			return m.updateConfirm(msg), nil
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "esc":
			if m.page != pageChat {
				m.page = pageChat
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateCredential(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		ok := m.secret.Value() != ""
		m.credential.reply <- credentialReply{value: m.secret.Value(), ok: ok}
		if ok {
			m.status = "API key saved."
		} else {
			m.status = "No API key entered."
		}
		m.endPrompt()
		return m, nil
	case tea.KeyEsc:
		m.credential.reply <- credentialReply{}
		m.status = "API key entry cancelled."
		m.endPrompt()
		return m, nil
	}
	var cmd tea.Cmd
	m.secret, cmd = m.secret.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) Model {
	switch strings.ToLower(msg.String()) {
	case "y":
		m.confirm.reply <- true
	case "n", "esc":
		m.confirm.reply <- false
	default:
		return m
	}
	m.status = ""
	m.endPrompt()
	return m
}

func (m *Model) endPrompt() {
	m.mode = modeChat
	m.credential = nil
	m.confirm = nil
	m.secret.Reset()
	m.secret.Blur()
	m.input.Focus()
}

// declinePending unblocks any worker waiting on the user.
func (m *Model) declinePending() {
	if m.credential != nil {
		m.credential.reply <- credentialReply{}
	}
	if m.confirm != nil {
		m.confirm.reply <- false
	}
	m.endPrompt()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}
	if cmd, ok := parseCommand(line); ok {
		return m.command(cmd)
	}
	if m.asking {
		m.status = service.Describe(domain.ErrBusy)
		return m, nil
	}

	m.asking = true
	m.page = pageChat
	m.chat = append(m.chat, exchange{model: m.modelID, question: line})
	m.status = "Waiting for " + m.modelID + "..."
	m.refresh()

	svc, ctx, events := m.service, m.ctx, m.events
	req := service.AskRequest{Query: line, ModelID: m.modelID, PasteText: m.paste}
	return m, m.run(func() tea.Msg {
		ans, err := svc.Ask(ctx, req, func(text string) {
			select {
			case events <- partialMsg(text):
			case <-ctx.Done():
			}
		})
		return answerMsg{ans: ans, err: err}
	})
}

func (m Model) command(c command) (tea.Model, tea.Cmd) {
	svc, ctx := m.service, m.ctx
	switch c.name {
	case "help", "h":
		m.page = pageDocument
		m.shown = domain.Document{Name: "Help", Content: fmt.Sprintf(helpText, strings.Join(m.cloud, ", "))}
	case "model":
		if c.rest == "" {
			m.status = "Current model: " + m.modelID
			break
		}
		m.modelID = c.rest
		m.status = "Model set to " + m.modelID
	case "add":
		if len(c.args) == 0 {
			m.status = "Usage: /add PATHS..."
			break
		}
		m.working = "Reading files..."
		return m, m.run(func() tea.Msg {
			res, err := svc.Upload(ctx, c.args)
			return uploadMsg{res: res, err: err}
		})
	case "paste":
		if c.rest == "" {
			m.status = "Usage: /paste IMAGE"
			break
		}
		m.working = "Recognizing text..."
		m.ocr = &ocr.Progress{Status: ocr.StatusInitializing}
		events := m.events
		path := c.rest
		return m, m.run(func() tea.Msg {
			image, err := os.ReadFile(path)
			if err != nil {
				return ocrDoneMsg{err: err}
			}
			doc, err := svc.PasteImage(ctx, image, func(p ocr.Progress) {
				select {
				case events <- ocrProgressMsg(p):
				case <-ctx.Done():
				}
			})
			return ocrDoneMsg{doc: doc, err: err}
		})
	case "note":
		m.paste = c.rest
		if m.paste == "" {
			m.status = "Paste text cleared."
		} else {
			m.status = fmt.Sprintf("Paste text set (%d characters). It is searched with every question.", len([]rune(m.paste)))
		}
	case "save":
		paste := m.paste
		return m, m.run(func() tea.Msg {
			doc, err := svc.SavePaste(ctx, paste)
			return savedMsg{doc: doc, err: err}
		})
	case "reset":
		confirm := m.interactor.Confirm
		return m, m.run(func() tea.Msg {
			ok, err := confirm(ctx, "Delete every document?")
			if err != nil || !ok {
				return resetMsg{err: err}
			}
			return resetMsg{done: true, err: svc.Reset(ctx)}
		})
	case "docs":
		m.page = pageDocs
	case "show":
		docs := svc.Documents()
		n, err := strconv.Atoi(c.rest)
		if err != nil || n < 1 || n > len(docs) {
			m.status = fmt.Sprintf("Usage: /show N (1-%d)", len(docs))
			break
		}
		m.page = pageDocument
		m.shown = docs[n-1]
	case "key":
		if c.rest != "clear" {
			m.status = "Usage: /key clear"
			break
		}
		return m, m.run(func() tea.Msg {
			return keyClearedMsg{err: svc.ClearCredential(ctx)}
		})
	default:
		m.status = fmt.Sprintf("Unknown command /%s. Type /help.", c.name)
	}
	m.refresh()
	return m, nil
}

func (m Model) handleEvent(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case partialMsg:
		if n := len(m.chat); n > 0 {
			m.chat[n-1].answer = string(msg)
		}
	case answerMsg:
		m.asking = false
		if n := len(m.chat); n > 0 {
			last := &m.chat[n-1]
			last.complete = true
			if msg.err != nil {
				last.failed = true
				last.answer = service.Describe(msg.err)
				m.status = "Request failed."
			} else {
				last.answer = msg.ans.Text
				last.sources = sourceNames(msg.ans.Sources)
				m.status = fmt.Sprintf("Answered by %s.", msg.ans.ModelID)
			}
		}
	case uploadMsg:
		m.working = ""
		if msg.err != nil {
			m.status = service.Describe(msg.err)
			break
		}
		notes := []string{fmt.Sprintf("Added %d file(s).", len(msg.res.Added))}
		for _, s := range msg.res.Skipped {
			notes = append(notes, s.Notice())
		}
		m.status = strings.Join(notes, " ")
	case ocrProgressMsg:
		p := ocr.Progress(msg)
		m.ocr = &p
	case ocrDoneMsg:
		m.working = ""
		m.ocr = nil
		m.paste = ""
		switch {
		case msg.err != nil:
			m.status = service.Describe(msg.err)
		case msg.doc == nil:
			m.status = "No text was detected in the image."
		default:
			m.status = fmt.Sprintf("Recognized text added as %s (temporary). Use /save to keep it.", msg.doc.Name)
		}
	case savedMsg:
		if msg.err != nil {
			m.status = service.Describe(msg.err)
			break
		}
		m.paste = ""
		m.status = fmt.Sprintf("Saved as %s.", msg.doc.Name)
	case resetMsg:
		switch {
		case msg.err != nil:
			m.status = service.Describe(msg.err)
		case !msg.done:
			m.status = "Reset cancelled."
		default:
			m.page = pageChat
			m.paste = ""
			m.status = "All documents were deleted."
		}
	case keyClearedMsg:
		if msg.err != nil {
			m.status = service.Describe(msg.err)
		} else {
			m.status = "Stored API key deleted."
		}
	case credentialRequest:
		m.mode = modeCredential
		m.credential = &msg
		m.status = msg.message
		m.input.Blur()
		m.secret.Reset()
		return m, m.secret.Focus()
	case confirmRequest:
		m.mode = modeConfirm
		m.confirm = &msg
		m.status = msg.message + " [y/n]"
		m.input.Blur()
	}
	m.refresh()
	return m, nil
}

// run executes fn off the UI goroutine and delivers its result through the
// event channel, keeping it ordered after any partial updates fn sent.
func (m Model) run(fn func() tea.Msg) tea.Cmd {
	ctx, events := m.ctx, m.events
	return func() tea.Msg {
		msg := fn()
		select {
		case events <- msg:
		case <-ctx.Done():
		}
		return nil
	}
}

func (m Model) listen() tea.Cmd {
	ctx, events := m.ctx, m.events
	return func() tea.Msg {
		select {
		case msg := <-events:
			return eventMsg{msg: msg}
		case <-ctx.Done():
			return nil
		}
	}
}

// View renders the TUI layout and current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("plower")
	info := infoStyle.Render(m.info())
	body := resultBoxStyle.Render(m.viewport.View())

	var input string
	switch m.mode {
	case modeCredential:
		input = promptBoxStyle.Render(m.secret.View())
	case modeConfirm:
		input = promptBoxStyle.Render("y / n")
	default:
		input = queryBoxStyle.Render(m.input.View())
	}

	status := m.status
	if m.asking || m.working != "" {
		label := m.working
		if label == "" {
			label = status
		}
		status = m.spinner.View() + " " + label
	}
	var bar string
	if m.ocr != nil {
		bar = m.progress.ViewAs(float64(m.ocr.Percent)/100) + " " + m.ocr.Status
	}
	return header + "\n" + info + "\n" + body + "\n" + input + "\n" + statusStyle.Render(status) + "\n" + bar
}

func (m Model) info() string {
	parts := []string{
		"model: " + m.modelID,
		fmt.Sprintf("documents: %d", len(m.service.Documents())),
	}
	if n := len(m.service.Pending()); n > 0 {
		parts = append(parts, fmt.Sprintf("unsaved images: %d", n))
	}
	if m.paste != "" {
		parts = append(parts, fmt.Sprintf("paste: %d chars", len([]rune(m.paste))))
	}
	return strings.Join(parts, "  |  ")
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderPage())
	if m.page == pageChat {
		m.viewport.GotoBottom()
	} else {
		m.viewport.GotoTop()
	}
}

func (m Model) renderPage() string {
	width := max(20, m.viewport.Width-2)
	wrap := lipgloss.NewStyle().Width(width)
	switch m.page {
	case pageDocs:
		return wrap.Render(renderDocs(m.service.Documents()))
	case pageDocument:
		return titleStyle.Render(m.shown.Name) + "\n\n" + wrap.Render(m.shown.Content)
	}

	if len(m.chat) == 0 {
		return "No questions yet. Type /help for commands."
	}
	var sb strings.Builder
	for i, ex := range m.chat {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render(fmt.Sprintf("Q (%s):", ex.model)) + " " + wrap.Render(ex.question) + "\n")
		answer := ex.answer
		if answer == "" && !ex.complete {
			answer = "(waiting for the response...)"
		}
		style := answerStyle
		if ex.failed {
			style = errorStyle
		}
		sb.WriteString(style.Render("A:") + " " + wrap.Render(answer))
		if len(ex.sources) > 0 {
			sb.WriteString("\n" + infoStyle.Render("sources: "+strings.Join(ex.sources, ", ")))
		}
	}
	return sb.String()
}

func renderDocs(docs []domain.Document) string {
	if len(docs) == 0 {
		return "No documents. Use /add or /paste then /save."
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Documents (%d)", len(docs))) + "\n")
	for i, d := range docs {
		fmt.Fprintf(&sb, "%3d. %s\n", i+1, d.Name)
	}
	sb.WriteString("\n" + titleStyle.Render("Latest") + "\n")
	for _, d := range display.Preview(docs) {
		sb.WriteString(questionStyle.Render(d.Name) + "\n" + d.Content + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sourceNames lists the documents that matched the question.
func sourceNames(scored []domain.ScoredDocument) []string {
	var names []string
	for _, s := range scored {
		if s.Score > 0 {
			names = append(names, s.Name)
		}
	}
	return names
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("11")).Padding(0, 1)
)
