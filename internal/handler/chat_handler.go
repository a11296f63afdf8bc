package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/groundqa/internal/model"
	"github.com/xxxsen/groundqa/internal/pkg/errcode"
	"github.com/xxxsen/groundqa/internal/pkg/response"
)

// Engine is the question-answering surface, implemented by
// service.RAGService.
type Engine interface {
	Ask(ctx context.Context, req *model.AskRequest) (*model.AskResponse, error)
	CreateConversation(ctx context.Context) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
}

type ChatHandler struct {
	engine Engine
}

func NewChatHandler(engine Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	resp, err := h.engine.Ask(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	conv, err := h.engine.CreateConversation(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conv)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.engine.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conv)
}
