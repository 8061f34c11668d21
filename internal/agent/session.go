package agent

import (
	"strings"

	"github.com/google/uuid"

	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/tool"
)

// Session is the state of one message being processed. It is created per
// message and passed through the loop; nothing about a message lives in
// package or Agent state.
type Session struct {
	ID      string
	ChatID  string
	Input   string
	History []history.Record
	// Summary condenses history turns older than History, if any.
	Summary string
	Steps   []Step
	Tools   *tool.Registry

	parseErrors int
}

// NewSession creates a session for input.
func NewSession(chatID, input string, prior []history.Record, tools *tool.Registry) *Session {
	return &Session{
		ID:      uuid.NewString(),
		ChatID:  chatID,
		Input:   input,
		History: prior,
		Tools:   tools,
	}
}

// ParseErrors is the number of unparseable model outputs so far.
func (s *Session) ParseErrors() int { return s.parseErrors }

// ToolSteps counts the steps that invoked (or tried to invoke) a tool.
func (s *Session) ToolSteps() int {
	n := 0
	for _, st := range s.Steps {
		if !st.ParseError {
			n++
		}
	}
	return n
}

// chatHistory renders prior turns for prompts.
func (s *Session) chatHistory() string {
	var b strings.Builder
	if s.Summary != "" {
		b.WriteString("Summary of earlier conversation: ")
		b.WriteString(s.Summary)
		b.WriteString("\n")
	}
	for _, r := range s.History {
		b.WriteString("Human: ")
		b.WriteString(r.Prompt)
		b.WriteString("\nAI: ")
		b.WriteString(r.Response)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
