package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-companion/gateway/internal/model/persona"
)

type fakeChatModel struct {
	mu     sync.Mutex
	inputs [][]*schema.Message
	reply  func(in []*schema.Message) (string, error)
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	text, err := f.reply(in)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func (f *fakeChatModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

func echoModel() *fakeChatModel {
	return &fakeChatModel{reply: func(in []*schema.Message) (string, error) {
		return "re: " + in[len(in)-1].Content, nil
	}}
}

func newTestService(t *testing.T, m model.ChatModel, limit int) *Service {
	t.Helper()
	svc, err := NewServiceWithModel(context.Background(), m, NewMemory(limit), nil)
	require.NoError(t, err)
	return svc
}

// exchange runs one turn the way the pipeline does: respond, then remember.
func exchange(t *testing.T, svc *Service, text string, p *persona.Persona) string {
	t.Helper()
	reply, err := svc.Respond(context.Background(), text, p)
	require.NoError(t, err)
	svc.Remember(text, reply, p)
	return reply
}

func TestRespondUsesPersonaPrompt(t *testing.T) {
	fake := echoModel()
	svc := newTestService(t, fake, 20)
	coach := persona.Seed()[2]

	reply, err := svc.Respond(context.Background(), "hello", &coach)
	require.NoError(t, err)
	assert.Equal(t, "re: hello", reply)

	in := fake.lastInput()
	require.Len(t, in, 2)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Contains(t, in[0].Content, "You are Linh")
	assert.Contains(t, in[0].Content, coach.SystemPrompt)
	assert.Equal(t, "hello", in[1].Content)
}

func TestRespondWithoutPersonaUsesDefault(t *testing.T) {
	fake := echoModel()
	svc := newTestService(t, fake, 20)

	_, err := svc.Respond(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, fake.lastInput()[0].Content)
	assert.Empty(t, svc.Memory().History("default"), "memory is only written by Remember")

	svc.Remember("hi", "re: hi", nil)
	assert.Len(t, svc.Memory().History("default"), 2)
}

func TestMemoryIsIsolatedPerPersona(t *testing.T) {
	fake := echoModel()
	svc := newTestService(t, fake, 20)
	seeds := persona.Seed()
	a, b := seeds[0], seeds[1]

	exchange(t, svc, "my cat is called Mochi", &a)

	exchange(t, svc, "tell me a story", &b)
	for _, msg := range fake.lastInput() {
		assert.NotContains(t, msg.Content, "Mochi")
	}

	exchange(t, svc, "what is my cat called?", &a)
	in := fake.lastInput()
	require.Len(t, in, 4)
	assert.Equal(t, "my cat is called Mochi", in[1].Content)

	assert.Len(t, svc.Memory().History(a.ID), 4)
	assert.Len(t, svc.Memory().History(b.ID), 2)
}

func TestRespondFailureLeavesMemoryUntouched(t *testing.T) {
	fake := &fakeChatModel{reply: func([]*schema.Message) (string, error) {
		return "", errors.New("upstream down")
	}}
	svc := newTestService(t, fake, 20)

	_, err := svc.Respond(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Empty(t, svc.Memory().History("default"))
}

func TestMemoryLimitKeepsNewestExchanges(t *testing.T) {
	mem := NewMemory(4)
	for _, word := range []string{"one", "two", "three"} {
		mem.Remember("aura", word, strings.ToUpper(word))
	}

	history := mem.History("aura")
	require.Len(t, history, 4)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "THREE", history[3].Content)

	mem.Forget("aura")
	assert.Empty(t, mem.History("aura"))
}

func TestPlaceholderResponder(t *testing.T) {
	var r Responder = PlaceholderResponder{}
	reply, err := r.Respond(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "Aura")
	r.Remember("", reply, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Respond(ctx, "hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
