package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider scripts responses for gateway tests.
type fakeProvider struct {
	name     string
	reply    string
	err      error
	hang     bool // block until the context is cancelled
	calls    int
	lastMsgs []ChatMessage
	lastOpts ChatOptions
	models   []string
}

func (f *fakeProvider) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
	f.calls++
	f.lastMsgs = messages
	f.lastOpts = opts
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func (f *fakeProvider) Name() string { return f.name }

func newTestGateway(primary, secondary Provider) *Gateway {
	g := NewGateway(
		primary, ChatOptions{Model: "primary-model", Temperature: 0.7, MaxTokens: 256},
		secondary, ChatOptions{Model: "secondary-model", Temperature: 0.7, MaxTokens: 256},
		&Persona{text: "persona"},
		5*time.Second,
		testLogger(),
	)
	return g
}

func TestGateway_PrimarySucceeds(t *testing.T) {
	primary := &fakeProvider{name: "groq", reply: "resposta"}
	secondary := &fakeProvider{name: "openai", reply: "fallback"}
	g := newTestGateway(primary, secondary)

	text, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Ana: oi"}})
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
	assert.Equal(t, "primary-model", primary.lastOpts.Model)
}

func TestGateway_PrependsPersonaSystemMessage(t *testing.T) {
	primary := &fakeProvider{name: "groq", reply: "ok"}
	g := newTestGateway(primary, &fakeProvider{name: "openai"})

	_, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Ana: oi"}})
	require.NoError(t, err)

	require.Len(t, primary.lastMsgs, 2)
	assert.Equal(t, RoleSystem, primary.lastMsgs[0].Role)
	assert.Equal(t, "persona", primary.lastMsgs[0].Content)
	assert.Equal(t, "Ana: oi", primary.lastMsgs[1].Content)
}

func TestGateway_FallsBackOnPrimaryFailure(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("auth failure")}
	secondary := &fakeProvider{name: "openai", reply: "do fallback"}
	g := newTestGateway(primary, secondary)

	text, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Ana: oi"}})
	require.NoError(t, err)
	assert.Equal(t, "do fallback", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, "secondary-model", secondary.lastOpts.Model)
}

func TestGateway_TimeoutTreatedAsProviderFailure(t *testing.T) {
	primary := &fakeProvider{name: "groq", hang: true}
	secondary := &fakeProvider{name: "openai", reply: "do fallback"}
	g := newTestGateway(primary, secondary)
	g.timeout = 20 * time.Millisecond

	text, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Ana: oi"}})
	require.NoError(t, err)
	assert.Equal(t, "do fallback", text)
}

func TestGateway_BothFail(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("timeout")}
	secondary := &fakeProvider{name: "openai", err: errors.New("malformed response")}
	g := newTestGateway(primary, secondary)

	_, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Ana: oi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "malformed response")
}

func TestGateway_CooldownSkipsPrimaryAfterFailure(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("down")}
	secondary := &fakeProvider{name: "openai", reply: "ok"}
	g := newTestGateway(primary, secondary)

	_, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "a"}})
	require.NoError(t, err)
	require.Equal(t, 1, primary.calls)

	// Within the cooldown the primary is not called again.
	_, err = g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, secondary.calls)
}

func TestGateway_CooldownExpires(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("down")}
	secondary := &fakeProvider{name: "openai", reply: "ok"}
	g := newTestGateway(primary, secondary)
	g.cooldown = 10 * time.Millisecond

	_, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "a"}})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	primary.err = nil
	primary.reply = "recuperado"
	text, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "recuperado", text)
	assert.Equal(t, 2, primary.calls)
}

func TestGateway_CallerCancellationDoesNotTripCooldown(t *testing.T) {
	primary := &fakeProvider{name: "groq", hang: true}
	secondary := &fakeProvider{name: "openai", err: errors.New("request cancelled")}
	g := newTestGateway(primary, secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Complete(ctx, []ChatMessage{{Role: RoleUser, Content: "a"}})
	require.Error(t, err)
	require.Equal(t, 1, primary.calls)

	// The primary did not fail on its own; the next turn must still reach it.
	primary.hang = false
	primary.reply = "resposta"
	text, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)
	assert.Equal(t, 2, primary.calls)
}

func TestGateway_CooldownDisabled(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("down")}
	secondary := &fakeProvider{name: "openai", reply: "ok"}
	g := newTestGateway(primary, secondary)
	g.cooldown = 0

	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "x"}})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, primary.calls)
}

func TestGateway_ModelsUnion(t *testing.T) {
	primary := &fakeProvider{name: "groq", models: []string{"llama3", "mixtral"}}
	secondary := &fakeProvider{name: "openai", models: []string{"gpt-3.5-turbo"}}
	g := newTestGateway(primary, secondary)

	models, err := g.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mixtral", "gpt-3.5-turbo"}, models)
}

func TestGateway_ModelsPartialFailure(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("down")}
	secondary := &fakeProvider{name: "openai", models: []string{"gpt-3.5-turbo"}}
	g := newTestGateway(primary, secondary)

	models, err := g.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-3.5-turbo"}, models)
}

func TestGateway_ModelsBothFail(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("down")}
	secondary := &fakeProvider{name: "openai", err: errors.New("down too")}
	g := newTestGateway(primary, secondary)

	_, err := g.Models(context.Background())
	require.Error(t, err)
}
