package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"deep-search-wiser/internal/eventbus"
	"deep-search-wiser/internal/logger"
)

// ConsoleConfig configures the console shell.
type ConsoleConfig struct {
	In  io.Reader
	Out io.Writer
	// Markdown renders answers with glamour. Leave it off when Out is not a terminal.
	Markdown bool
	// Verbose prints every tool call and observation published on Bus.
	Verbose bool
	Bus     *eventbus.Bus
}

// ConsoleChannel reads questions line by line and prints answers.
type ConsoleChannel struct {
	mu       sync.Mutex
	in       io.Reader
	out      io.Writer
	renderer *glamour.TermRenderer
	verbose  bool
	bus      *eventbus.Bus
	handler  func(InboundMessage)
	running  bool
	cancel   context.CancelFunc
	unsub    func()
	done     chan struct{}
	log      *zap.Logger
}

func NewConsoleChannel(cfg ConsoleConfig) (*ConsoleChannel, error) {
	c := &ConsoleChannel{
		in:      cfg.In,
		out:     cfg.Out,
		verbose: cfg.Verbose,
		bus:     cfg.Bus,
		done:    make(chan struct{}),
		log:     logger.Named("console"),
	}
	if cfg.Markdown {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return nil, fmt.Errorf("create markdown renderer: %w", err)
		}
		c.renderer = r
	}
	return c, nil
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	if c.verbose && c.bus != nil {
		c.unsub = c.bus.Subscribe(c.printStep,
			eventbus.TopicAgentAct, eventbus.TopicAgentObserve, eventbus.TopicParseError)
	}

	go c.readLoop(ctx)
	return nil
}

func (c *ConsoleChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.running = false
	return nil
}

// Done is closed when the input is exhausted.
func (c *ConsoleChannel) Done() <-chan struct{} { return c.done }

func (c *ConsoleChannel) Send(_ context.Context, msg OutboundMessage) error {
	text := msg.Text
	if c.renderer != nil && !strings.HasPrefix(text, "Error: ") {
		if rendered, err := c.renderer.Render(text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		} else {
			c.log.Debug("markdown rendering failed", zap.Error(err))
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\n%s\n\n", text)
	return err
}

func (c *ConsoleChannel) OnMessage(handler func(InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *ConsoleChannel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *ConsoleChannel) printStep(e eventbus.Event) {
	step, ok := e.Payload.(eventbus.AgentStep)
	if !ok {
		return
	}
	var line string
	switch e.Topic {
	case eventbus.TopicAgentAct:
		line = fmt.Sprintf("  → %s(%s)", step.Tool, abbreviate(step.Input, 80))
	case eventbus.TopicAgentObserve:
		line = fmt.Sprintf("  ← %s", abbreviate(step.Observation, 160))
	case eventbus.TopicParseError:
		line = fmt.Sprintf("  ! %s", step.Observation)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *ConsoleChannel) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "> ")
}

// readLoop handles one line at a time; the next prompt is shown once the
// handler has answered.
func (c *ConsoleChannel) readLoop(ctx context.Context) {
	defer close(c.done)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	c.prompt()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			c.prompt()
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()

		if handler != nil {
			handler(InboundMessage{
				ChannelName: "console",
				SenderID:    "local",
				SenderName:  "User",
				Text:        text,
				Timestamp:   time.Now(),
			})
		}
		c.prompt()
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn("reading input failed", zap.Error(err))
	}
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
