package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSub(t *testing.T) {
	bus := New()
	var received []Event
	var mu sync.Mutex

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, TopicAgentThink)

	bus.Publish(TopicAgentThink, "hello")
	bus.Publish(TopicAgentThink, "world")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "hello", received[0].Payload)
	assert.Equal(t, "world", received[1].Payload)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestMultipleTopicsAndSubscribers(t *testing.T) {
	bus := New()
	count := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(func(e Event) { count++ }, TopicAgentAct, TopicAgentObserve)
	}

	bus.Publish(TopicAgentAct, AgentStep{Tool: "NegativeFilter"})
	bus.Publish(TopicAgentObserve, AgentStep{Observation: "[]"})
	bus.Publish(TopicError, "ignored")

	assert.Equal(t, 6, count)
}

func TestUnsubscribe(t *testing.T) {
	bus := New()
	var a, b int
	stopA := bus.Subscribe(func(Event) { a++ }, TopicAgentFinish, TopicError)
	bus.Subscribe(func(Event) { b++ }, TopicAgentFinish)

	bus.Publish(TopicAgentFinish, nil)
	stopA()
	bus.Publish(TopicAgentFinish, nil)
	bus.Publish(TopicError, nil)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestUnsubscribedTopicAndNilBus(t *testing.T) {
	New().Publish(TopicAgentThink, "no subscribers")
	var bus *Bus
	bus.Publish(TopicAgentThink, "dropped")
}
