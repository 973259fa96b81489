// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cli-llm-chat/llmchat/internal/cloud"
	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSender struct {
	replies []string
	err     error
	// block waits for cancellation instead of replying.
	block bool

	calls []sentCall
}

type sentCall struct {
	transcript []model.Message
	opts       cloud.SendOptions
}

func (f *fakeSender) Send(ctx context.Context, transcript []model.Message, opts cloud.SendOptions) (model.Message, error) {
	f.calls = append(f.calls, sentCall{transcript: transcript, opts: opts})
	if f.block {
		<-ctx.Done()
		return model.Message{}, &cloud.APIError{Message: "request failed", Err: ctx.Err()}
	}
	if f.err != nil {
		return model.Message{}, f.err
	}
	reply := "ok"
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}
	return model.NewAssistantMessage(reply), nil
}

type scriptReader struct {
	lines []string
	err   error
}

func (r *scriptReader) ReadLine(string) (string, error) {
	if len(r.lines) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type recordRenderer struct {
	replies []model.Message
	outputs []Output
	waits   int
}

func (r *recordRenderer) Reply(msg model.Message) { r.replies = append(r.replies, msg) }
func (r *recordRenderer) Render(out Output)       { r.outputs = append(r.outputs, out) }
func (r *recordRenderer) Waiting(string) func() {
	r.waits++
	return func() {}
}

func (r *recordRenderer) last() Output {
	if len(r.outputs) == 0 {
		return Output{}
	}
	return r.outputs[len(r.outputs)-1]
}

func (r *recordRenderer) kinds() []Kind {
	kinds := make([]Kind, 0, len(r.outputs))
	for _, o := range r.outputs {
		kinds = append(kinds, o.Kind)
	}
	return kinds
}

type memSettings struct {
	settings model.Settings
	err      error
	saves    int
}

func (m *memSettings) Load() (model.Settings, error) { return m.settings, m.err }
func (m *memSettings) Save(s model.Settings) error {
	m.saves++
	m.settings = s
	return nil
}

type harness struct {
	loop   *Loop
	sender *fakeSender
	store  *storage.ConversationStore
	out    *recordRenderer
}

func newHarness(t *testing.T, conv model.Conversation, lines ...string) *harness {
	t.Helper()
	h := &harness{
		sender: &fakeSender{},
		store:  storage.NewConversationStoreWithDir(t.TempDir()),
		out:    &recordRenderer{},
	}
	h.loop = New(h.sender, h.store, &scriptReader{lines: lines}, h.out, conv, Options{
		Temperature: 0.7,
		MaxTokens:   1000,
		Verbosity:   model.VerbosityShort,
		Notify: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithCancel(ctx)
		},
	})
	return h
}

func contents(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Role)+":"+m.Content)
	}
	return out
}

// =============================================================================
// PROCESSING TESTS
// =============================================================================

func TestLoop_SimpleExchange(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID), "2+2?", "/exit")
	h.sender.replies = []string{"4"}

	require.NoError(t, h.loop.Run(context.Background()))

	conv := h.loop.Conversation()
	assert.Equal(t, []string{
		"system:" + model.VerbosityShort.SystemPrompt(),
		"user:2+2?",
		"assistant:4",
	}, contents(conv.Messages))

	require.Len(t, h.out.replies, 1)
	assert.Equal(t, "4", h.out.replies[0].Content)
	assert.Equal(t, 1, h.out.waits)

	require.Len(t, h.sender.calls, 1)
	call := h.sender.calls[0]
	assert.Equal(t, []string{"system:" + model.VerbosityShort.SystemPrompt(), "user:2+2?"}, contents(call.transcript))
	assert.Equal(t, model.DefaultModelID, call.opts.Model)
	assert.Equal(t, 0.7, call.opts.Temperature)
	assert.Equal(t, 1000, call.opts.MaxTokens)
	assert.False(t, call.opts.Stream)

	assert.True(t, h.last().Exit)
}

func (h *harness) last() Output { return h.out.last() }

func TestLoop_FullTranscriptSentEachTurn(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID), "one", "two")
	h.sender.replies = []string{"r1", "r2"}

	require.NoError(t, h.loop.Run(context.Background()))

	require.Len(t, h.sender.calls, 2)
	assert.Len(t, h.sender.calls[1].transcript, 4)
	assert.Equal(t, "user:two", contents(h.sender.calls[1].transcript)[3])
	assert.Equal(t, 5, h.loop.Conversation().MessageCount())
}

func TestLoop_AuthErrorLeavesConversationUnchanged(t *testing.T) {
	start := model.NewConversation("proj", model.DefaultModelID).
		WithMessage(model.NewUserMessage("earlier")).
		WithMessage(model.NewAssistantMessage("reply"))
	h := newHarness(t, start, "hello")
	h.sender.err = &cloud.AuthError{Err: &cloud.APIError{StatusCode: 401, Message: "invalid key"}}

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Equal(t, start, h.loop.Conversation())
	assert.Empty(t, h.out.replies)

	var errOut Output
	for _, o := range h.out.outputs {
		if o.Kind == KindError {
			errOut = o
		}
	}
	assert.Contains(t, errOut.Text, "Authentication failed")
	assert.Contains(t, errOut.Text, "config-set")

	// Nothing persisted for a failed turn.
	_, err := h.store.Load("proj")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoop_APIErrorReported(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID), "hello")
	h.sender.err = &cloud.APIError{StatusCode: 500, Message: "boom"}

	require.NoError(t, h.loop.Run(context.Background()))

	assert.True(t, h.loop.Conversation().IsEmpty())
	assert.Contains(t, h.out.kinds(), KindError)
}

func TestLoop_InterruptKeepsUserMessage(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))
	h.sender.block = true
	h.loop.notify = func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel() // Ctrl+C arrives while the request is in flight.
		return ctx, cancel
	}

	_, err := h.loop.turn(context.Background(), "long question", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	msgs := h.loop.Conversation().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "user:long question", contents(msgs)[1])
	assert.Empty(t, h.out.replies)
	assert.Equal(t, KindWarning, h.last().Kind)
}

func TestLoop_AutoSaveNamed(t *testing.T) {
	h := newHarness(t, model.NewConversation("proj", model.DefaultModelID), "hi")
	h.sender.replies = []string{"hello"}

	require.NoError(t, h.loop.Run(context.Background()))

	saved, err := h.store.Load("proj")
	require.NoError(t, err)
	assert.Equal(t, h.loop.Conversation(), *saved)
}

func TestLoop_NoAutoSaveEphemeral(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID), "hi")

	require.NoError(t, h.loop.Run(context.Background()))

	names, err := h.store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoop_EndOfInputAndInterruptAtPrompt(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))
	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, "Goodbye!", h.last().Text)

	h2 := newHarness(t, model.NewConversation("", model.DefaultModelID))
	h2.loop.in = &scriptReader{err: ErrInterrupted}
	require.NoError(t, h2.loop.Run(context.Background()))
}

func TestLoop_ReadError(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))
	h.loop.in = &scriptReader{err: errors.New("tty gone")}
	assert.ErrorContains(t, h.loop.Run(context.Background()), "tty gone")
}

func TestLoop_BlankLinesIgnored(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID), "", "   ", "/exit")
	require.NoError(t, h.loop.Run(context.Background()))
	assert.Empty(t, h.sender.calls)
}

// =============================================================================
// RUN ONCE TESTS
// =============================================================================

func TestRunOnce(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))
	h.sender.replies = []string{"4"}

	reply, err := h.loop.RunOnce(context.Background(), "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", reply.Content)
	require.Len(t, h.out.replies, 1)
	assert.Empty(t, h.out.outputs)
	assert.Equal(t, 0, h.out.waits)
}

func TestRunOnce_ReturnsError(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))
	h.sender.err = &cloud.AuthError{Err: &cloud.APIError{StatusCode: 401}}

	_, err := h.loop.RunOnce(context.Background(), "hi")
	var authErr *cloud.AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Empty(t, h.out.outputs)
	assert.True(t, h.loop.Conversation().IsEmpty())
}

func TestRunOnce_EmptyMessage(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))

	_, err := h.loop.RunOnce(context.Background(), "  ")
	var usageErr *UsageError
	assert.True(t, errors.As(err, &usageErr))
	assert.Empty(t, h.sender.calls)
}

// =============================================================================
// OPEN TESTS
// =============================================================================

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewConversationStoreWithDir(dir)

	t.Run("ephemeral", func(t *testing.T) {
		conv, out := Open(store, "", "m")
		assert.False(t, conv.IsNamed())
		assert.Equal(t, KindNone, out.Kind)
	})

	t.Run("missing starts new named", func(t *testing.T) {
		conv, out := Open(store, "fresh", "m")
		assert.Equal(t, "fresh", conv.Name)
		assert.Equal(t, "m", conv.Model)
		assert.Equal(t, KindInfo, out.Kind)
	})

	t.Run("existing", func(t *testing.T) {
		saved := model.NewConversation("old", "saved/model").WithMessage(model.NewUserMessage("hi"))
		require.NoError(t, store.Save(&saved))

		conv, out := Open(store, "old", "m")
		assert.Equal(t, saved, conv)
		assert.Equal(t, KindInfo, out.Kind)
	})

	t.Run("corrupt starts unnamed", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0600))

		conv, out := Open(store, "bad", "m")
		assert.False(t, conv.IsNamed())
		assert.Equal(t, KindError, out.Kind)
		assert.ErrorIs(t, out.Err, storage.ErrCorruptData)
	})
}

func TestLoop_SessionID(t *testing.T) {
	h := newHarness(t, model.NewConversation("", model.DefaultModelID))
	assert.Len(t, h.loop.SessionID(), 8)
	assert.Equal(t, model.VerbosityShort, h.loop.Verbosity())
}
