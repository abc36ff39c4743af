// Package pipeline turns one inbound unit into the ordered events sent back
// to the client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/aura-companion/gateway/internal/model/chat"
	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/service/ai"
	transcript "github.com/aura-companion/gateway/internal/service/chat"
	"github.com/aura-companion/gateway/internal/service/speech"
	"github.com/aura-companion/gateway/pkg/logx"
)

// ErrCollaborator wraps every failure returned by a collaborator call.
var ErrCollaborator = errors.New("collaborator failure")

// FallbackReply is sent when the response collaborator fails.
const FallbackReply = "I'm sorry, I'm having a little trouble answering right now. Could you say that again in a moment?"

const (
	msgTranscriptFailed = "failed to save conversation"
	msgUnsupportedUnit  = "unsupported input"
	msgInternal         = "internal error"
)

// Pipeline drives transcription, response generation, transcript storage and
// synthesis for one unit at a time. It holds no per-invocation state and is
// safe for concurrent use by many sessions.
type Pipeline struct {
	stt         speech.Transcriber
	llm         ai.Responder
	tts         speech.Synthesizer
	transcripts transcript.Store
	timeout     time.Duration
	log         zerolog.Logger
}

// New wires a pipeline. A zero timeout disables per-call deadlines.
func New(stt speech.Transcriber, llm ai.Responder, tts speech.Synthesizer, transcripts transcript.Store, timeout time.Duration) *Pipeline {
	return &Pipeline{
		stt:         stt,
		llm:         llm,
		tts:         tts,
		transcripts: transcripts,
		timeout:     timeout,
		log:         logx.Component("pipeline"),
	}
}

// Run starts one invocation and returns its events. The channel is
// unbuffered, so each stage only starts after the previous event was
// received, and it is closed when the invocation ends. Callers must drain it
// or cancel ctx.
func (p *Pipeline) Run(ctx context.Context, unit event.Unit, who *persona.Persona) <-chan event.Event {
	out := make(chan event.Event)
	go func() {
		defer close(out)
		emit := func(e event.Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("pipeline panicked")
				emit(event.Error{Message: msgInternal})
			}
		}()
		p.run(ctx, unit, who, emit)
	}()
	return out
}

func (p *Pipeline) run(ctx context.Context, unit event.Unit, who *persona.Persona, emit func(event.Event) bool) {
	switch u := unit.(type) {
	case event.TextUnit:
		reply, ok := p.respond(ctx, u.Content, who)
		if ctx.Err() != nil || !emit(event.Response{Text: reply}) {
			return
		}
		if ok && p.record(ctx, u.Content, reply, who, emit) {
			p.llm.Remember(u.Content, reply, who)
		}

	case event.AudioUnit:
		text := p.transcribe(ctx, u.Data)
		if ctx.Err() != nil || !emit(event.Transcript{Text: text}) {
			return
		}

		reply, ok := p.respond(ctx, text, who)
		if ctx.Err() != nil || !emit(event.Response{Text: reply}) {
			return
		}
		if ok {
			if !p.record(ctx, text, reply, who, emit) {
				return
			}
			p.llm.Remember(text, reply, who)
		}

		audio := p.synthesize(ctx, reply, who)
		if len(audio) > 0 {
			emit(event.Audio{Data: audio})
		}

	default:
		emit(event.Error{Message: msgUnsupportedUnit})
	}
}

// transcribe degrades to an empty transcript on failure.
func (p *Pipeline) transcribe(ctx context.Context, audio []byte) string {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	text, err := p.stt.Transcribe(callCtx, audio)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(fmt.Errorf("%w: transcribe: %w", ErrCollaborator, err)).Int("bytes", len(audio)).Msg("transcription failed, continuing with empty text")
		}
		return ""
	}
	return text
}

// respond reports false when the fallback reply was substituted.
func (p *Pipeline) respond(ctx context.Context, text string, who *persona.Persona) (string, bool) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	reply, err := p.llm.Respond(callCtx, text, who)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(fmt.Errorf("%w: respond: %w", ErrCollaborator, err)).Str("persona", conversationKey(who)).Msg("response generation failed, sending fallback")
		}
		return FallbackReply, false
	}
	return reply, true
}

func (p *Pipeline) synthesize(ctx context.Context, text string, who *persona.Persona) []byte {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	voice := ""
	if who != nil {
		voice = who.VoiceID
	}
	audio, err := p.tts.Synthesize(callCtx, text, voice)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(fmt.Errorf("%w: synthesize: %w", ErrCollaborator, err)).Msg("speech synthesis failed, skipping audio")
		}
		return nil
	}
	return audio
}

// record appends the user and assistant messages. On failure it emits the
// terminating Error and reports false.
func (p *Pipeline) record(ctx context.Context, user, reply string, who *persona.Persona, emit func(event.Event) bool) bool {
	key := conversationKey(who)

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	for _, m := range [...]struct {
		role    chat.Role
		content string
	}{
		{chat.RoleUser, user},
		{chat.RoleAssistant, reply},
	} {
		if _, err := p.transcripts.Append(callCtx, key, m.role, m.content); err != nil {
			if ctx.Err() != nil {
				return false
			}
			p.log.Error().Err(fmt.Errorf("%w: append transcript: %w", ErrCollaborator, err)).Str("conversation", key).Msg("transcript append failed")
			emit(event.Error{Message: msgTranscriptFailed})
			return false
		}
	}
	return true
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func conversationKey(who *persona.Persona) string {
	if who == nil || who.ID == "" {
		return chat.DefaultConversation
	}
	return who.ID
}
