package alert

import (
	"crypto/subtle"

	alertsvc "coinpulse/internal/alert"
	"coinpulse/internal/dao"
	"coinpulse/pkg/logger"
	"coinpulse/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// 告警相关的HTTP接口：手动测试推送 + 历史查询

type Handler struct {
	dispatcher *alertsvc.Dispatcher
	formatter  *alertsvc.Formatter
	dao        dao.AlertDAO
	testKey    string
}

func NewHandler(dispatcher *alertsvc.Dispatcher, formatter *alertsvc.Formatter, d dao.AlertDAO, testKey string) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		formatter:  formatter,
		dao:        d,
		testKey:    testKey,
	}
}

// TestAlert 手动触发一条测试告警，验证推送链路
// GET /api/v1/alert/test?key=xxx&symbol=BTCUSDT
func (h *Handler) TestAlert(c *gin.Context) {
	key := c.Query("key")
	if h.testKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.testKey)) != 1 {
		response.Err(c, response.CodeUnauth, "invalid test key")
		return
	}

	// 一个渠道都没配的时候直接报错，不要假装发成功了
	if !h.dispatcher.HasChannel() {
		response.Err(c, response.CodeInternal, "no alert channel configured")
		return
	}

	symbol := c.DefaultQuery("symbol", "BTCUSDT")
	ev := h.formatter.Test(symbol)
	if err := h.dispatcher.Dispatch(c.Request.Context(), &ev); err != nil {
		logger.Error("test alert failed", logger.Pair("error", err))
		response.Err(c, response.CodeInternal, "dispatch failed")
		return
	}
	response.OK(c, gin.H{"id": ev.ID})
}

// HistoryGet 查询最近的告警历史
// GET /api/v1/alert/history?symbol=BTCUSDT&limit=50
func (h *Handler) HistoryGet(c *gin.Context) {
	if h.dao == nil {
		response.Err(c, response.CodeInternal, "storage not configured")
		return
	}

	symbol := c.Query("symbol")
	limit := cast.ToInt(c.DefaultQuery("limit", "50"))

	rows, err := h.dao.ListHistory(c.Request.Context(), symbol, limit)
	if err != nil {
		logger.Error("list alert history failed", logger.Pair("error", err))
		response.Err(c, response.CodeInternal, "query failed")
		return
	}
	response.OK(c, rows)
}
