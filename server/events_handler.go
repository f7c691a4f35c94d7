package server

import (
	"context"
	"net/http"

	"ClipForge/core/events"
	"ClipForge/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler 升级为 WebSocket，推送时间线、安装和解析事件
// ?topics=timeline,install 只订阅指定类型
func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := events.NewClient(h.hub, conn, r.URL.Query().Get("topics"))
	if subject, ok := SubjectFromContext(r.Context()); ok {
		logger.Info("事件订阅", logger.String("client", client.ID), logger.String("subject", subject))
	}
	h.hub.Register(client)

	// 请求上下文在升级后即失效，读循环使用独立上下文
	go client.WritePump()
	go client.ReadPump(context.Background())
}
