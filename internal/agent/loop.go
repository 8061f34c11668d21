package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"deep-search-wiser/internal/eventbus"
	"deep-search-wiser/internal/logger"
)

var (
	// ErrStepLimit ends a message that used up agent.max_steps tool calls.
	ErrStepLimit = errors.New("reached the maximum number of tool calls for this request")
	// ErrParseLimit ends a message whose model output kept failing to parse.
	ErrParseLimit = errors.New("model output could not be parsed")
)

// loop runs think → act → observe until the decider finishes or a budget
// runs out.
func (a *Agent) loop(ctx context.Context, s *Session) (string, error) {
	log := logger.FromContext(ctx, a.log)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.ToolSteps() >= a.cfg.MaxSteps {
			return "", fmt.Errorf("%w (%d)", ErrStepLimit, a.cfg.MaxSteps)
		}

		// Think
		a.publish(eventbus.TopicAgentThink, s, eventbus.AgentStep{})
		decision, err := a.decider.Decide(ctx, s)

		var perr *ParseError
		if errors.As(err, &perr) {
			s.parseErrors++
			log.Debug("unparseable model output", zap.String("reason", perr.Reason), zap.Int("count", s.parseErrors))
			a.publish(eventbus.TopicParseError, s, eventbus.AgentStep{Observation: perr.Reason, IsError: true})
			if s.parseErrors > a.cfg.MaxParseErrors {
				return "", fmt.Errorf("%w after %d attempts: %s", ErrParseLimit, s.parseErrors, perr.Reason)
			}
			s.Steps = append(s.Steps, Step{
				Action:      Action{Log: perr.Output},
				Observation: perr.Reason,
				IsError:     true,
				ParseError:  true,
			})
			continue
		}
		if err != nil {
			return "", err
		}

		switch d := decision.(type) {
		case Finish:
			a.publish(eventbus.TopicAgentFinish, s, eventbus.AgentStep{Thought: d.Thought, Answer: d.Answer})
			return d.Answer, nil

		case Action:
			// Act
			d.Input = truncate(d.Input, a.cfg.MaxToolInputChars)
			a.publish(eventbus.TopicAgentAct, s, eventbus.AgentStep{Thought: d.Thought, Tool: d.Tool, Input: d.Input})
			observation, isErr := a.act(ctx, s, d)

			// Observe
			s.Steps = append(s.Steps, Step{Action: d, Observation: observation, IsError: isErr})
			a.publish(eventbus.TopicAgentObserve, s, eventbus.AgentStep{Tool: d.Tool, Observation: observation, IsError: isErr})

		default:
			return "", fmt.Errorf("unexpected decision %T", decision)
		}
	}
}

// act validates the action against the registry and runs the tool. Every
// outcome becomes an observation for the model.
func (a *Agent) act(ctx context.Context, s *Session, action Action) (string, bool) {
	log := logger.FromContext(ctx, a.log)

	t, err := s.Tools.Get(action.Tool)
	if err != nil {
		log.Info("model chose unknown tool", zap.String("tool", action.Tool))
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", action.Tool, strings.Join(s.Tools.Names(), ", ")), true
	}

	res, err := t.Execute(ctx, action.Input)
	if err != nil {
		log.Warn("tool failed", zap.String("tool", action.Tool), zap.Error(err))
		return truncate("Error executing tool: "+err.Error(), a.cfg.MaxObservationChars), true
	}
	return truncate(res.Observation(), a.cfg.MaxObservationChars), res.IsError
}

func (a *Agent) publish(topic eventbus.Topic, s *Session, step eventbus.AgentStep) {
	step.SessionID = s.ID
	step.ChatID = s.ChatID
	step.Step = len(s.Steps) + 1
	a.bus.Publish(topic, step)
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
