package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/ai"
	"github.com/xxxsen/groundqa/internal/citation"
	"github.com/xxxsen/groundqa/internal/conversation"
	"github.com/xxxsen/groundqa/internal/highlight"
	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
	"github.com/xxxsen/groundqa/internal/prompt"
)

const NoSourcesAnswer = "I couldn't find any relevant sources for this question, so I can't answer it from the available material."

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]model.ScoredChunk, error)
}

// Generator is satisfied by *ai.Manager.
type Generator interface {
	Generate(ctx context.Context, provider string, req ai.GenerateRequest) (string, error)
}

type RAGConfig struct {
	DefaultResults int
	MaxResults     int
	// HistoryTurns is how many previous user turns join the query for
	// retrieval.
	HistoryTurns int
	// ContextTurns is how many stored messages are read for the prompt.
	ContextTurns int
	Temperature  *float32
}

type RAGService struct {
	store       conversation.Store
	retriever   Retriever
	assembler   *prompt.Assembler
	generator   Generator
	highlighter *highlight.Highlighter
	cfg         RAGConfig
}

func NewRAGService(store conversation.Store, retriever Retriever, assembler *prompt.Assembler,
	generator Generator, highlighter *highlight.Highlighter, cfg RAGConfig) *RAGService {
	return &RAGService{
		store:       store,
		retriever:   retriever,
		assembler:   assembler,
		generator:   generator,
		highlighter: highlighter,
		cfg:         cfg,
	}
}

func (s *RAGService) validate(req *model.AskRequest) (int, error) {
	if strings.TrimSpace(req.Query) == "" {
		return 0, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	k := req.NumResults
	if k == 0 {
		k = s.cfg.DefaultResults
	}
	if k < 1 || k > s.cfg.MaxResults {
		return 0, fmt.Errorf("%w: num_results must be in [1, %d]", appErr.ErrInvalid, s.cfg.MaxResults)
	}
	for i, m := range req.ConversationHistory {
		if !model.ValidRole(m.Role) {
			return 0, fmt.Errorf("%w: conversation_history[%d] has invalid role %q", appErr.ErrInvalid, i, m.Role)
		}
	}
	return k, nil
}

// Ask answers one question. Without a conversation id a new conversation is
// created, seeded with any client-supplied history; it is only persisted
// once the answer succeeds.
func (s *RAGService) Ask(ctx context.Context, req *model.AskRequest) (*model.AskResponse, error) {
	k, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("conversation_id", req.ConversationID), zap.String("provider", req.Provider))

	var history, seed []model.Message
	if req.ConversationID != "" {
		history, err = s.store.History(ctx, req.ConversationID, s.cfg.ContextTurns)
		if err != nil {
			return nil, err
		}
	} else {
		seed = seedHistory(req.ConversationHistory)
		history = seed
		if s.cfg.ContextTurns > 0 && len(history) > s.cfg.ContextTurns {
			history = history[len(history)-s.cfg.ContextTurns:]
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, retrievalText(req.Query, history, s.cfg.HistoryTurns), k)
	if err != nil {
		logger.Error("retrieval failed", zap.Error(err))
		return nil, err
	}

	answer := NoSourcesAnswer
	citations := []model.Citation{}
	if len(chunks) == 0 {
		logger.Info("no relevant chunks, answering without sources")
	} else {
		p := prompt.Compose(s.assembler.Assemble(chunks, history), req.Query)
		answer, err = s.generator.Generate(ctx, req.Provider, ai.GenerateRequest{
			System:      p.System,
			Prompt:      p.User,
			Temperature: s.cfg.Temperature,
		})
		if err != nil {
			logger.Error("generation failed", zap.Error(err))
			return nil, err
		}
		citations = citation.Compose(chunks, s.highlighter.Highlight(ctx, answer, chunks))
	}

	id := req.ConversationID
	if id == "" {
		if id, err = s.store.Create(ctx); err != nil {
			return nil, err
		}
		if len(seed) > 0 {
			if err := s.store.Append(ctx, id, seed...); err != nil {
				return nil, err
			}
		}
	}
	if err := s.store.Append(ctx, id,
		model.Message{Role: model.RoleUser, Content: req.Query},
		model.Message{Role: model.RoleAssistant, Content: answer},
	); err != nil {
		return nil, err
	}
	return &model.AskResponse{Answer: answer, ConversationID: id, Citations: citations}, nil
}

func (s *RAGService) CreateConversation(ctx context.Context) (*model.Conversation, error) {
	id, err := s.store.Create(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *RAGService) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return s.store.Get(ctx, id)
}

func seedHistory(items []model.HistoryMessage) []model.Message {
	out := make([]model.Message, 0, len(items))
	for _, m := range items {
		out = append(out, model.Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	return out
}

// retrievalText joins the last turns previous user messages with the query so
// follow-up questions retrieve in context.
func retrievalText(query string, history []model.Message, turns int) string {
	var prev []string
	for i := len(history) - 1; i >= 0 && len(prev) < turns; i-- {
		if history[i].Role == model.RoleUser {
			prev = append(prev, history[i].Content)
		}
	}
	parts := make([]string, 0, len(prev)+1)
	for i := len(prev) - 1; i >= 0; i-- {
		parts = append(parts, prev[i])
	}
	parts = append(parts, strings.TrimSpace(query))
	return strings.Join(parts, "\n")
}
