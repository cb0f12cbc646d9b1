package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fractionalhub.app/concierge/internal/http/dto"
	"fractionalhub.app/concierge/internal/service"
)

type MemoryHandler struct {
	memory service.MemoryService
}

func NewMemoryHandler(memory service.MemoryService) *MemoryHandler {
	return &MemoryHandler{memory: memory}
}

func (h *MemoryHandler) Save(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.MemorySaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid memory save request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, reason, err := h.memory.Save(ctx, req.UserID, req.Transcript)
	if err != nil {
		slog.ErrorContext(ctx, "memory save failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save transcript"})
		return
	}
	c.JSON(http.StatusOK, dto.MemorySaveResponse{Saved: saved, Reason: reason})
}

func (h *MemoryHandler) Context(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.MemoryContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid memory context request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.memory.Context(ctx, req.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "memory context fetch failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch context"})
		return
	}
	c.JSON(http.StatusOK, dto.MemoryContextResponse{Context: out})
}
