package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fractionalhub.app/concierge/internal/http/dto"
	"fractionalhub.app/concierge/internal/service"
)

type TokenHandler struct {
	tokens service.TokenService
}

func NewTokenHandler(tokens service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	token, err := h.tokens.Mint(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "token minting failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to mint access token"})
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{AccessToken: token})
}
