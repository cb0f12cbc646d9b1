package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fractionalhub.app/concierge/internal/analyzer"
	"fractionalhub.app/concierge/internal/http/dto"
	"fractionalhub.app/concierge/internal/model"
)

type AnalyzeHandler struct {
	transcripts analyzer.TranscriptAnalyzer
	python      *analyzer.PythonProxy
}

func NewAnalyzeHandler(transcripts analyzer.TranscriptAnalyzer, python *analyzer.PythonProxy) *AnalyzeHandler {
	return &AnalyzeHandler{transcripts: transcripts, python: python}
}

// Analyze runs the in-process LLM extraction. Backend failures surface as a
// status field rather than an HTTP error so the caller can distinguish "the
// analyzer had nothing" from "the gateway is down".
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid analyze request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.transcripts.Analyze(ctx, req.Transcript, req.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "transcript analysis failed", "error", err)
		c.JSON(http.StatusOK, dto.AnalyzeResponse{Status: "error", Error: "analysis failed"})
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, dto.AnalyzeResponse{Status: "success"})
		return
	}

	data, err := model.EncodeExtraction(res)
	if err != nil {
		slog.ErrorContext(ctx, "encoding extraction result failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode result"})
		return
	}
	c.JSON(http.StatusOK, dto.AnalyzeResponse{Status: "success", Data: data})
}

// AnalyzePython proxies the request body to the external python analyzer
// unchanged and relays its response verbatim.
func (h *AnalyzeHandler) AnalyzePython(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	out, status, err := h.python.Forward(ctx, body)
	if err != nil {
		slog.ErrorContext(ctx, "python analyzer unreachable", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "python analyzer unavailable"})
		return
	}
	c.Data(status, "application/json", out)
}
