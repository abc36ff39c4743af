package ai

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/aura-companion/gateway/internal/config"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/pkg/logx"
)

// Responder generates a reply for one user utterance. Remember is called
// once the exchange has been stored, so the conversational memory never runs
// ahead of the transcript.
type Responder interface {
	Respond(ctx context.Context, text string, p *persona.Persona) (string, error)
	Remember(text, reply string, p *persona.Persona)
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	memory *Memory
	log    zerolog.Logger
}

// NewService creates a Service backed by the configured chat model and, when
// AI_DOCS_DIR is set, a knowledge base built from that directory.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	var knowledge retriever.Retriever
	if cfg.DocsDir != "" {
		kb, err := LoadKnowledge(ctx, cfg.DocsDir, cfg.RetrieveTopK)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			l := logx.Component("ai")
			l.Warn().Str("dir", cfg.DocsDir).Msg("docs directory not found, answering without knowledge base")
		case err != nil:
			return nil, err
		default:
			knowledge = kb
		}
	}
	return NewServiceWithModel(ctx, chatModel, NewMemory(cfg.MemoryLimit), knowledge)
}

// NewServiceWithModel compiles the prompt chain around an existing model.
// knowledge may be nil.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, memory *Memory, knowledge retriever.Retriever) (*Service, error) {
	s := &Service{memory: memory, log: logx.Component("ai")}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	if knowledge != nil {
		chain.AppendLambda(compose.InvokableLambda(s.withContext(knowledge)))
	}
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	s.chain = runnable
	return s, nil
}

// withContext appends the passages retrieved for the query to the system
// instruction. Retrieval failures degrade to no context.
func (s *Service) withContext(knowledge retriever.Retriever) compose.InvokeWOOpt[map[string]any, map[string]any] {
	return func(ctx context.Context, in map[string]any) (map[string]any, error) {
		query, _ := in["query"].(string)
		if strings.TrimSpace(query) == "" {
			return in, nil
		}

		docs, err := knowledge.Retrieve(ctx, query)
		if err != nil {
			s.log.Warn().Err(err).Msg("retrieval failed, answering without context")
			return in, nil
		}
		if len(docs) == 0 {
			return in, nil
		}

		out := make(map[string]any, len(in))
		for k, v := range in {
			out[k] = v
		}
		system, _ := in["system"].(string)
		out["system"] = system + "\n\n" + FormatContext(docs)

		s.log.Debug().Int("passages", len(docs)).Msg("retrieved context")
		return out, nil
	}
}

// Memory exposes the persona-keyed conversational memory.
func (s *Service) Memory() *Memory {
	return s.memory
}

// Respond runs the chain with the persona instruction and that persona's
// memory.
func (s *Service) Respond(ctx context.Context, text string, p *persona.Persona) (string, error) {
	key := memoryKey(p)

	input := map[string]any{
		"system":  BuildSystemPrompt(p),
		"history": s.memory.History(key),
		"query":   text,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	s.log.Debug().Str("memory", key).Int("length", len(reply)).Msg("generated response")
	return reply, nil
}

// Remember implements Responder.
func (s *Service) Remember(text, reply string, p *persona.Persona) {
	s.memory.Remember(memoryKey(p), text, reply)
}

func memoryKey(p *persona.Persona) string {
	if p == nil {
		return Key("")
	}
	return Key(p.ID)
}

// PlaceholderResponder answers without a model, used when no credentials are
// configured.
type PlaceholderResponder struct{}

// Respond implements Responder.
func (PlaceholderResponder) Respond(ctx context.Context, text string, p *persona.Persona) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := "Aura"
	if p != nil && p.Name != "" {
		name = p.Name
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Sprintf("%s is listening. Could you say that again?", name), nil
	}
	return fmt.Sprintf("%s is listening. You said: %s", name, text), nil
}

// Remember implements Responder.
func (PlaceholderResponder) Remember(string, string, *persona.Persona) {}
