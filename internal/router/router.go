package router

import (
	alerthandler "coinpulse/internal/handler/alert"
	"coinpulse/internal/handler/ping"
	"coinpulse/internal/handler/stream"
	"coinpulse/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由注册，实现app.Router接口
type Router struct {
	alert *alerthandler.Handler
	ping  *ping.Handler
	hub   *stream.Hub
}

func New(alert *alerthandler.Handler, hub *stream.Hub) *Router {
	return &Router{alert: alert, ping: ping.NewHandler(hub), hub: hub}
}

func (r *Router) Load(g *gin.Engine) {
	g.Use(gin.Recovery())
	g.Use(middleware.NoCache())
	g.Use(middleware.Options())
	g.Use(middleware.RequestId())
	g.Use(middleware.Logger)

	// 探活
	g.GET("/", r.ping.Alive)
	g.GET("/ping", r.ping.Ping)

	v1 := g.Group("/api/v1")
	{
		a := v1.Group("/alert")
		a.GET("/test", middleware.AntiDuplicateMiddleware(), r.alert.TestAlert)
		a.GET("/history", middleware.AntiDuplicateMiddleware(), r.alert.HistoryGet)
		// websocket不挂防抖
		a.GET("/ws", r.hub.ServeWS)
	}
}
