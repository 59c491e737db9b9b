package chatrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/events"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/go-go-golems/chatwidget/pkg/session"
	"github.com/go-go-golems/chatwidget/pkg/transport"
	"github.com/go-go-golems/chatwidget/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	input "github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// RunMode defines the execution mode for the chat session.
type RunMode string

const (
	RunModeChat        RunMode = "chat"
	RunModeInteractive RunMode = "interactive"
	RunModeBlocking    RunMode = "blocking"
)

// OutputFormat selects how blocking mode prints the answer.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
	// OutputHTML prints the reply as sanitized HTML.
	OutputHTML OutputFormat = "html"
)

// ChatSession holds the validated configuration and executes the chat logic.
// It's typically created and run by the ChatBuilder.
type ChatSession struct {
	ctx            context.Context
	runner         *Runner
	bus            *events.Bus
	ownsBus        bool
	uiOptions      []ui.WidgetOption
	programOptions []tea.ProgramOption
	mode           RunMode
	outputWriter   io.Writer
	outputFormat   OutputFormat
	question       string
	ttyIn          io.Reader
	ttyOut         io.Writer
	isTerminal     func() bool
	onChatStart    func()
}

func (cs *ChatSession) Runner() *Runner { return cs.runner }

// Run executes the chat session based on its configured mode.
func (cs *ChatSession) Run() error {
	if cs.ownsBus {
		defer func() {
			if err := cs.bus.Close(); err != nil {
				log.Debug().Err(err).Str("component", "chatrunner").Msg("closing bus")
			}
		}()
	}
	switch cs.mode {
	case RunModeChat:
		return cs.runChatInternal()
	case RunModeInteractive:
		return cs.runInteractiveInternal()
	case RunModeBlocking:
		return cs.runBlockingInternal()
	default:
		return errors.Errorf("unknown run mode: %v", cs.mode)
	}
}

// runChatInternal runs the widget until the user quits, forwarding bus
// events into the program.
func (cs *ChatSession) runChatInternal() error {
	ctx, cancel := context.WithCancel(cs.ctx)
	defer cancel()

	ch, err := cs.bus.Subscribe(ctx, cs.runner.SessionID())
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to conversation events")
	}
	if cs.onChatStart != nil {
		cs.onChatStart()
	}

	opts := append([]ui.WidgetOption{ui.WithContext(ctx)}, cs.uiOptions...)
	model := ui.NewWidget(cs.runner, opts...)
	programOptions := append([]tea.ProgramOption{tea.WithContext(ctx)}, cs.programOptions...)
	p := tea.NewProgram(model, programOptions...)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Debug().Str("component", "chatrunner").Msg("Forwarding conversation events to UI")
		err := events.Consume(egCtx, ch, ui.ForwardFunc(p))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	eg.Go(func() error {
		// the UI exiting ends the session
		defer cancel()
		log.Debug().Str("component", "chatrunner").Msg("Starting Bubble Tea program")
		_, runErr := p.Run()
		log.Debug().Err(runErr).Str("component", "chatrunner").Msg("Bubble Tea program finished")
		if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return runErr
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) && cs.ctx.Err() == context.Canceled {
		return nil
	}
	return err
}

// turnOutput is what json and yaml output print.
type turnOutput struct {
	SessionID  string               `json:"session_id" yaml:"session_id"`
	TurnID     string               `json:"turn_id" yaml:"turn_id"`
	Query      string               `json:"query" yaml:"query"`
	Reply      string               `json:"reply" yaml:"reply"`
	Outcome    turnlog.Outcome      `json:"outcome" yaml:"outcome"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
	Transcript []conversation.Entry `json:"transcript" yaml:"transcript"`
}

// runBlockingInternal asks one question and prints the answer.
func (cs *ChatSession) runBlockingInternal() error {
	var onChunk func(string)
	if cs.outputFormat == OutputText {
		onChunk = func(chunk string) {
			_, _ = io.WriteString(cs.outputWriter, chunk)
		}
	}

	res, err := cs.runner.AskStream(cs.ctx, cs.question, onChunk)
	if err != nil {
		// bus or turn log trouble; the answer itself is complete
		log.Warn().Err(err).Str("component", "chatrunner").Msg("turn side effects failed")
	}
	if !res.Submitted {
		return errors.New("question is empty")
	}

	switch cs.outputFormat {
	case OutputJSON, OutputYAML:
		out := turnOutput{
			SessionID:  cs.runner.SessionID(),
			TurnID:     res.TurnID,
			Query:      res.Query,
			Reply:      res.Reply,
			Outcome:    turnlog.OutcomeDelivered,
			Transcript: conversation.Entries(cs.runner.Snapshot()),
		}
		if res.Failed() {
			out.Outcome = turnlog.OutcomeFailed
			out.Error = res.Err.Error()
		}
		return cs.writeStructured(out)
	case OutputHTML:
		reply := res.Reply
		if res.Failed() {
			reply = conversation.FailureText
		}
		html, err := render.NewHTML().Render(reply)
		if err != nil {
			return errors.Wrap(err, "failed to render html")
		}
		_, err = io.WriteString(cs.outputWriter, html)
		return errors.Wrap(err, "failed to write output")
	default:
		if res.Failed() {
			if res.Reply != "" {
				_, _ = fmt.Fprintln(cs.outputWriter)
			}
			_, err := fmt.Fprintln(cs.outputWriter, conversation.FailureText)
			return errors.Wrap(err, "failed to write output")
		}
		_, err := fmt.Fprintln(cs.outputWriter)
		return errors.Wrap(err, "failed to write output")
	}
}

func (cs *ChatSession) writeStructured(out turnOutput) error {
	if cs.outputFormat == OutputYAML {
		enc := yaml.NewEncoder(cs.outputWriter)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "failed to write yaml output")
		}
		return enc.Close()
	}
	enc := json.NewEncoder(cs.outputWriter)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "failed to write json output")
}

// runInteractiveInternal handles initial blocking run + optional chat transition.
func (cs *ChatSession) runInteractiveInternal() error {
	log.Debug().Msg("Running initial blocking step for interactive mode")
	err := cs.runBlockingInternal()
	if err != nil {
		if errors.Is(err, context.Canceled) && cs.ctx.Err() == context.Canceled {
			log.Debug().Msg("Initial blocking step cancelled by context")
			return nil
		}
		return errors.Wrap(err, "error during initial blocking step")
	}

	if !cs.isTerminal() {
		log.Debug().Msg("Stderr is not a TTY, skipping chat continuation prompt")
		return nil
	}

	continueInChat, err := askForChatContinuation(cs.ttyIn, cs.ttyOut)
	if err != nil {
		return errors.Wrap(err, "failed to ask for chat continuation")
	}
	if !continueInChat {
		log.Debug().Msg("User chose not to continue in chat mode")
		return nil
	}

	log.Debug().Msg("User chose to continue, starting chat UI")
	return cs.runChatInternal()
}

// --- ChatBuilder ---

// ChatBuilder provides a fluent API for configuring and running a chat session.
type ChatBuilder struct {
	err            error
	ctx            context.Context
	transport      transport.Transport
	reducer        *conversation.Reducer
	bus            *events.Bus
	turns          turnlog.Store
	uiOptions      []ui.WidgetOption
	programOptions []tea.ProgramOption
	mode           RunMode
	outputWriter   io.Writer
	outputFormat   OutputFormat
	question       string
	ttyIn          io.Reader
	ttyOut         io.Writer
	isTerminal     func() bool
	onChatStart    func()
}

// NewChatBuilder creates a new builder with default settings.
func NewChatBuilder() *ChatBuilder {
	return &ChatBuilder{
		ctx:            context.Background(),
		programOptions: []tea.ProgramOption{tea.WithAltScreen()},
		outputWriter:   os.Stdout,
		outputFormat:   OutputText,
		mode:           RunModeChat,
		ttyIn:          os.Stdin,
		ttyOut:         os.Stderr,
		isTerminal: func() bool {
			return isatty.IsTerminal(os.Stderr.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
		},
	}
}

func (b *ChatBuilder) WithContext(ctx context.Context) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if ctx == nil {
		b.err = errors.New("context cannot be nil")
		return b
	}
	b.ctx = ctx
	return b
}

// WithTransport sets where questions are sent. (Required)
func (b *ChatBuilder) WithTransport(t transport.Transport) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if t == nil {
		b.err = errors.New("transport cannot be nil")
		return b
	}
	b.transport = t
	return b
}

// WithReducer continues an existing transcript. By default a fresh one
// with a new session id is created.
func (b *ChatBuilder) WithReducer(r *conversation.Reducer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if r == nil {
		b.err = errors.New("reducer cannot be nil")
		return b
	}
	b.reducer = r
	return b
}

// WithBus provides an existing event bus. If not provided, an in-memory bus
// is created and closed when the session ends.
func (b *ChatBuilder) WithBus(bus *events.Bus) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.bus = bus
	return b
}

func (b *ChatBuilder) WithTurnLog(s turnlog.Store) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.turns = s
	return b
}

func (b *ChatBuilder) WithUIOptions(opts ...ui.WidgetOption) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.uiOptions = append(b.uiOptions, opts...)
	return b
}

func (b *ChatBuilder) WithProgramOptions(opts ...tea.ProgramOption) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.programOptions = append(b.programOptions, opts...)
	return b
}

// WithMode sets the execution mode (chat, interactive, blocking).
func (b *ChatBuilder) WithMode(mode RunMode) *ChatBuilder {
	if b.err != nil {
		return b
	}
	switch mode {
	case RunModeChat, RunModeInteractive, RunModeBlocking:
		b.mode = mode
	default:
		b.err = errors.Errorf("invalid run mode: %s", mode)
	}
	return b
}

// WithQuestion sets what blocking and interactive modes ask first.
func (b *ChatBuilder) WithQuestion(q string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.question = q
	return b
}

// WithOutputWriter sets the writer for blocking or interactive modes.
// Defaults to os.Stdout.
func (b *ChatBuilder) WithOutputWriter(w io.Writer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("output writer cannot be nil")
		return b
	}
	b.outputWriter = w
	return b
}

func (b *ChatBuilder) WithOutputFormat(f OutputFormat) *ChatBuilder {
	if b.err != nil {
		return b
	}
	switch f {
	case OutputText, OutputJSON, OutputYAML, OutputHTML:
		b.outputFormat = f
	case "":
		b.outputFormat = OutputText
	default:
		b.err = errors.Errorf("invalid output format: %s", f)
	}
	return b
}

// WithTerminal overrides where the continue-in-chat question is asked and
// how a terminal is detected.
func (b *ChatBuilder) WithTerminal(in io.Reader, out io.Writer, isTerminal func() bool) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if in == nil || out == nil || isTerminal == nil {
		b.err = errors.New("terminal reader, writer and detector are required")
		return b
	}
	b.ttyIn, b.ttyOut, b.isTerminal = in, out, isTerminal
	return b
}

// WithOnChatStart registers a hook that runs right before the widget takes
// over the terminal, e.g. to move logging off stderr.
func (b *ChatBuilder) WithOnChatStart(fn func()) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.onChatStart = fn
	return b
}

// Build validates the builder configuration and returns a session.
func (b *ChatBuilder) Build() (*ChatSession, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.transport == nil {
		return nil, errors.New("transport is required (use WithTransport)")
	}
	if b.mode == "" {
		return nil, errors.New("run mode is required (use WithMode)")
	}
	if (b.mode == RunModeBlocking || b.mode == RunModeInteractive) && b.outputWriter == nil {
		return nil, errors.New("output writer cannot be nil for blocking or interactive mode (use WithOutputWriter or rely on default)")
	}

	reducer := b.reducer
	if reducer == nil {
		reducer = conversation.NewReducer(conversation.Config{SessionID: session.NewID()})
	}

	bus, ownsBus := b.bus, false
	if bus == nil {
		bus, ownsBus = events.NewInMemoryBus(), true
	}

	runnerOpts := []RunnerOption{WithBus(bus)}
	if b.turns != nil {
		runnerOpts = append(runnerOpts, WithTurnLog(b.turns))
	}

	return &ChatSession{
		ctx:            b.ctx,
		runner:         NewRunner(reducer, b.transport, runnerOpts...),
		bus:            bus,
		ownsBus:        ownsBus,
		uiOptions:      b.uiOptions,
		programOptions: b.programOptions,
		mode:           b.mode,
		outputWriter:   b.outputWriter,
		outputFormat:   b.outputFormat,
		question:       b.question,
		ttyIn:          b.ttyIn,
		ttyOut:         b.ttyOut,
		isTerminal:     b.isTerminal,
		onChatStart:    b.onChatStart,
	}, nil
}

// askForChatContinuation asks on out (a TTY like os.Stderr) whether to
// continue in chat mode.
func askForChatContinuation(in io.Reader, out io.Writer) (bool, error) {
	ui := &input.UI{
		Writer: out,
		Reader: in,
	}

	_, _ = fmt.Fprint(out, "\n")
	query := "Do you want to continue in chat mode? [Y/n]"
	answer, err := ui.Ask(query, &input.Options{
		Default:  "y",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N", "":
				return nil
			default:
				return errors.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to get user input")
	}

	_, _ = fmt.Fprint(out, "\n")

	return answer == "y" || answer == "Y" || answer == "", nil
}
