package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// VoiceHandler exposes the voice-call deep link shown next to the chat.
type VoiceHandler struct {
	url string
}

func NewVoiceHandler(url string) *VoiceHandler {
	return &VoiceHandler{url: strings.TrimSpace(url)}
}

func (h *VoiceHandler) Link(c *gin.Context) {
	if h.url == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice call link not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.url})
}
