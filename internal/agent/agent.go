// Package agent runs the think → act → observe loop that answers a message by
// calling the search, filter and summarizer tools.
package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"deep-search-wiser/internal/channel"
	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/eventbus"
	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/prompt"
	"deep-search-wiser/internal/tool"
)

// Agent processes messages through the think→act→observe loop.
type Agent struct {
	cfg        config.AgentConfig
	decider    Decider
	tools      *tool.Registry
	history    history.Store
	bus        *eventbus.Bus
	ctxManager *contextManager
	log        *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an Agent. store and bus may be nil.
func New(
	cfg config.AgentConfig,
	provider llm.Provider,
	prompts *prompt.Store,
	tools *tool.Registry,
	store history.Store,
	bus *eventbus.Bus,
) *Agent {
	log := logger.Named("agent")
	return &Agent{
		cfg:        withDefaults(cfg),
		decider:    newDecider(cfg, provider, prompts, log),
		tools:      tools,
		history:    store,
		bus:        bus,
		ctxManager: newContextManager(provider, prompts, cfg.SummarizeAt),
		log:        log,
		locks:      make(map[string]*sync.Mutex),
	}
}

func withDefaults(cfg config.AgentConfig) config.AgentConfig {
	d := config.Defaults().Agent
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = d.MaxSteps
	}
	if cfg.MaxParseErrors <= 0 {
		cfg.MaxParseErrors = d.MaxParseErrors
	}
	if cfg.MaxToolInputChars <= 0 {
		cfg.MaxToolInputChars = d.MaxToolInputChars
	}
	if cfg.MaxObservationChars <= 0 {
		cfg.MaxObservationChars = d.MaxObservationChars
	}
	return cfg
}

func newDecider(cfg config.AgentConfig, provider llm.Provider, prompts *prompt.Store, log *zap.Logger) Decider {
	if cfg.Decider == "native" {
		if llm.SupportsTools(provider) {
			return NewNativeDecider(provider, cfg.Temperature, cfg.MaxTokens)
		}
		log.Warn("provider has no tool calling, falling back to react decider",
			zap.String("provider", provider.Name()))
	}
	return NewReactDecider(provider, prompts, cfg.Prompt, cfg.Temperature, cfg.MaxTokens)
}

// Decider returns the decider in use.
func (a *Agent) Decider() Decider { return a.decider }

// Result is the outcome of one processed message.
type Result struct {
	SessionID string
	Answer    string
	Steps     []Step
}

// Run answers input for chatID. Messages of the same chat are processed one
// at a time. The record is appended to history only on success.
func (a *Agent) Run(ctx context.Context, chatID, input string) (*Result, error) {
	unlock := a.lockChat(chatID)
	defer unlock()

	var prior []history.Record
	if a.history != nil {
		var err error
		prior, err = history.Recent(ctx, a.history, chatID, a.cfg.HistoryTurns)
		if err != nil {
			a.log.Warn("failed to load history", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	s := NewSession(chatID, input, prior, a.tools)
	ctx = logger.ContextWithTraceID(ctx, s.ID)
	log := logger.FromContext(ctx, a.log)
	log.Info("processing message", zap.String("chat_id", chatID), zap.String("input", truncate(input, 100)))

	a.ctxManager.prepare(ctx, s)
	a.bus.Publish(eventbus.TopicMessageStart, eventbus.AgentStep{SessionID: s.ID, ChatID: chatID, Input: input})

	answer, err := a.loop(ctx, s)
	if err != nil {
		log.Warn("message failed", zap.Error(err), zap.Int("steps", len(s.Steps)))
		a.bus.Publish(eventbus.TopicError, eventbus.AgentStep{SessionID: s.ID, ChatID: chatID, Answer: err.Error(), IsError: true})
		return nil, err
	}

	if a.history != nil {
		if err := a.history.Append(ctx, history.Record{Prompt: input, Response: answer, Chat: chatID}); err != nil {
			log.Warn("failed to save history", zap.Error(err))
		}
	}
	log.Info("message answered", zap.Int("steps", len(s.Steps)), zap.Int("parse_errors", s.ParseErrors()))
	return &Result{SessionID: s.ID, Answer: answer, Steps: s.Steps}, nil
}

// HandleDirectMessage processes a message from a shell that renders the
// answer itself.
func (a *Agent) HandleDirectMessage(ctx context.Context, chatID, text string) (string, error) {
	res, err := a.Run(ctx, chatID, text)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

func (a *Agent) lockChat(chatID string) func() {
	a.locksMu.Lock()
	mu, ok := a.locks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		a.locks[chatID] = mu
	}
	a.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Start routes inbound messages from all registered channels to the agent.
// Call it before mgr.StartAll so no early message is missed.
func (a *Agent) Start(ctx context.Context, mgr *channel.Manager) {
	for name := range mgr.List() {
		ch, ok := mgr.Get(name)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg channel.InboundMessage) {
			a.handleMessage(ctx, mgr, msg)
		})
	}
	a.log.Info("started and listening for messages")
}

// handleMessage processes an inbound message and sends the response back.
// Failures are shown inline where the answer would be.
func (a *Agent) handleMessage(ctx context.Context, mgr *channel.Manager, msg channel.InboundMessage) {
	response, err := a.HandleDirectMessage(ctx, msg.ChatID, msg.Text)
	if err != nil {
		response = "Error: " + err.Error()
	}

	ch, ok := mgr.Get(msg.ChannelName)
	if !ok {
		a.log.Warn("channel not found", zap.String("channel", msg.ChannelName))
		return
	}
	if err := ch.Send(ctx, channel.OutboundMessage{ChatID: msg.ChatID, Text: response}); err != nil {
		a.log.Warn("error sending response", zap.String("channel", msg.ChannelName), zap.Error(err))
	}
}
