package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/prompt"
)

const finalAnswerMarker = "Final Answer:"

var (
	actionRe      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyRe  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputRe = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

// ReactDecider drives the model with the text ReAct format
// (Thought / Action / Action Input / Observation / Final Answer).
type ReactDecider struct {
	provider    llm.Provider
	prompts     *prompt.Store
	promptName  string
	temperature float64
	maxTokens   int
}

// NewReactDecider creates a text ReAct decider using the named template.
func NewReactDecider(provider llm.Provider, prompts *prompt.Store, promptName string, temperature float64, maxTokens int) *ReactDecider {
	if promptName == "" {
		promptName = prompt.React
	}
	return &ReactDecider{
		provider:    provider,
		prompts:     prompts,
		promptName:  promptName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (d *ReactDecider) Name() string { return "react" }

func (d *ReactDecider) Decide(ctx context.Context, s *Session) (Decision, error) {
	text, err := d.prompts.Render(ctx, d.promptName, reactData(s))
	if err != nil {
		return nil, err
	}
	resp, err := d.provider.Chat(ctx, llm.Prompt(text, d.temperature, d.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("LLM error: %w", err)
	}
	return ParseReAct(resp.Content)
}

func reactData(s *Session) map[string]any {
	var tools, names []string
	for _, t := range s.Tools.List() {
		tools = append(tools, t.Name()+": "+t.Description())
		names = append(names, t.Name())
	}
	return map[string]any{
		"tools":            strings.Join(tools, "\n"),
		"tool_names":       strings.Join(names, ", "),
		"input":            s.Input,
		"agent_scratchpad": scratchpad(s.Steps),
		"chat_history":     s.chatHistory(),
	}
}

// scratchpad replays earlier steps the way the model wrote them, each followed
// by its observation.
func scratchpad(steps []Step) string {
	var b strings.Builder
	for _, st := range steps {
		b.WriteString(st.Action.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(st.Observation)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

// ParseReAct interprets one ReAct completion. Anything the model invented
// after its first "Observation:" is discarded.
func ParseReAct(output string) (Decision, error) {
	text := output
	if i := strings.Index(text, "\nObservation:"); i >= 0 {
		text = text[:i]
	}
	includesAnswer := strings.Contains(text, finalAnswerMarker)

	if m := actionRe.FindStringSubmatch(text); m != nil {
		if includesAnswer {
			return nil, &ParseError{Output: output,
				Reason: "Parsing LLM output produced both a final answer and a parse-able action"}
		}
		tool := strings.TrimSpace(m[1])
		input := strings.Trim(strings.TrimSpace(m[2]), `"`)
		return Action{
			Tool:    tool,
			Input:   input,
			Thought: thoughtBefore(text, "Action"),
			Log:     strings.TrimRight(text, " \n"),
		}, nil
	}

	if includesAnswer {
		parts := strings.Split(text, finalAnswerMarker)
		return Finish{
			Answer:  strings.TrimSpace(parts[len(parts)-1]),
			Thought: thoughtBefore(text, finalAnswerMarker),
		}, nil
	}

	reason := "Could not parse LLM output"
	switch {
	case !actionOnlyRe.MatchString(text):
		reason = "Invalid Format: Missing 'Action:' after 'Thought:'"
	case !actionInputRe.MatchString(text):
		reason = "Invalid Format: Missing 'Action Input:' after 'Action:'"
	}
	return nil, &ParseError{Output: output, Reason: reason}
}

func thoughtBefore(text, marker string) string {
	i := strings.Index(text, marker)
	if i < 0 {
		return ""
	}
	t := strings.TrimSpace(text[:i])
	return strings.TrimSpace(strings.TrimPrefix(t, "Thought:"))
}
