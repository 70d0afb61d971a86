package ping

import (
	"net/http"

	"coinpulse/internal/handler/stream"
	"coinpulse/pkg/response"

	"github.com/gin-gonic/gin"
)

// 探活接口，启动自检和外部监控共用

type Handler struct {
	hub *stream.Hub
}

func NewHandler(hub *stream.Hub) *Handler {
	return &Handler{hub: hub}
}

// Ping 健康检查，顺带报告ws在线连接数
func (h *Handler) Ping(c *gin.Context) {
	response.OK(c, gin.H{
		"status":     "pong",
		"ws_clients": h.hub.ClientCount(),
	})
}

// Alive 根路径的存活探针，返回纯文本
func (h *Handler) Alive(c *gin.Context) {
	c.String(http.StatusOK, "Bot is alive")
}
