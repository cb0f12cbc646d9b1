package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fractionalhub.app/concierge/internal/http/dto"
	"fractionalhub.app/concierge/internal/service"
)

type ToolCallHandler struct {
	toolCalls service.ToolCallService
}

func NewToolCallHandler(toolCalls service.ToolCallService) *ToolCallHandler {
	return &ToolCallHandler{toolCalls: toolCalls}
}

func (h *ToolCallHandler) Relay(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid tool call request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, err := h.toolCalls.Execute(ctx, req.ToolCallID, req.Name, req.Parameters)
	if err != nil {
		slog.ErrorContext(ctx, "tool call execution failed",
			"tool", req.Name, "tool_call_id", req.ToolCallID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tool execution failed"})
		return
	}

	c.JSON(http.StatusOK, dto.ToolCallResponse{Content: content})
}
