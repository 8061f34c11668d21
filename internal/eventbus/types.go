package eventbus

import "time"

// Topic represents an event topic.
type Topic string

const (
	TopicMessageStart Topic = "message_start"
	TopicAgentThink   Topic = "agent_think"
	TopicAgentAct     Topic = "agent_act"
	TopicAgentObserve Topic = "agent_observe"
	TopicParseError   Topic = "agent_parse_error"
	TopicAgentFinish  Topic = "agent_finish"
	TopicError        Topic = "error"
)

// AllTopics lists every topic the agent publishes, in loop order.
var AllTopics = []Topic{
	TopicMessageStart,
	TopicAgentThink,
	TopicAgentAct,
	TopicAgentObserve,
	TopicParseError,
	TopicAgentFinish,
	TopicError,
}

// Event is a message passed through the event bus.
type Event struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Handler processes an event.
type Handler func(Event)

// AgentStep is the payload of the agent_* topics. Fields not relevant to a
// topic are left empty.
type AgentStep struct {
	SessionID   string `json:"session_id"`
	ChatID      string `json:"chat_id,omitempty"`
	Step        int    `json:"step"`
	Thought     string `json:"thought,omitempty"`
	Tool        string `json:"tool,omitempty"`
	Input       string `json:"input,omitempty"`
	Observation string `json:"observation,omitempty"`
	Answer      string `json:"answer,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
}
