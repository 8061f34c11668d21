package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTool is a simple tool for testing.
type mockTool struct {
	name string
}

func (m *mockTool) Name() string        { return m.name }
func (m *mockTool) Description() string { return "test tool" }
func (m *mockTool) Execute(ctx context.Context, input string) (*Result, error) {
	return &Result{Output: "executed " + m.name + ": " + input}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockTool{name: "test1"}))
	require.NoError(t, r.Register(&mockTool{name: "test2"}))

	tool, err := r.Get("test1")
	require.NoError(t, err)
	assert.Equal(t, "test1", tool.Name())

	_, err = r.Get("nonexistent")
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockTool{name: "a"}))
	assert.Error(t, r.Register(&mockTool{name: "a"}))
	assert.Error(t, r.Register(&mockTool{name: ""}))
	assert.Len(t, r.List(), 1)
}

func TestRegistryKeepsOrder(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(&mockTool{name: n}))
	}
	assert.Equal(t, []string{"c", "a", "b"}, r.Names())

	var listed []string
	for _, tl := range r.List() {
		listed = append(listed, tl.Name())
	}
	assert.Equal(t, r.Names(), listed)
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockTool{name: "search"}))

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "search", defs[0].Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(defs[0].Parameters, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"input"}, schema["required"])
	assert.NotContains(t, schema, "$schema")
}

func TestInputFromArguments(t *testing.T) {
	assert.Equal(t, "X haberleri", InputFromArguments(json.RawMessage(`{"input":"X haberleri"}`)))
	assert.Equal(t, "plain", InputFromArguments(json.RawMessage(`"plain"`)))
	assert.Equal(t, `{"query":"q"}`, InputFromArguments(json.RawMessage(`{"query":"q"}`)))
}

func TestResultObservation(t *testing.T) {
	assert.Equal(t, "ok", (&Result{Output: "ok"}).Observation())
	assert.Equal(t, "Error: bad", (&Result{Error: "bad", IsError: true}).Observation())
	assert.Equal(t, "", (*Result)(nil).Observation())
}

func TestCleanInput(t *testing.T) {
	assert.Equal(t, "X açıklaması", cleanInput(`  "X açıklaması" `))
	assert.Equal(t, "q", cleanInput("`'q'`"))
	assert.Equal(t, `"a" b`, cleanInput(`"a" b`))
}
