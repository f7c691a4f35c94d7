package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ClipForge/config"
	"ClipForge/core/app"
	"ClipForge/core/project"
	"ClipForge/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 注册全部路由
func NewRouter(a *app.App) *mux.Router {
	h := NewAPIHandler(a.Composer, a.Resolver, a.Events)
	authMW := AuthMiddleware(a.Config.JWTSecret)

	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 时间线
	router.HandleFunc("/api/timeline/build", authMW(h.BuildHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/timeline/clips/{id}/afresh", authMW(h.AfreshClipHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/timeline/tracks/{kind}/clips/{index}", authMW(h.DeleteClipHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/timeline/captions/{id}", authMW(h.SetCaptionHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/timeline/play", authMW(h.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/timeline/seek", authMW(h.SeekHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/timeline/stop", authMW(h.StopHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/timeline/state", authMW(h.StateHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/timeline/frame", authMW(h.FrameHandler)).Methods(http.MethodGet)

	// 资源
	router.HandleFunc("/api/assets/resolve", authMW(h.ResolveAssetHandler)).Methods(http.MethodPost)

	router.HandleFunc("/ws/events", authMW(h.EventsHandler)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	return router
}

// Start 装配组件并启动 HTTP 服务，收到中断信号后优雅关闭
func Start(cfg *config.Config, source project.Source) error {
	ctx := context.Background()
	a, err := app.Open(ctx, cfg, app.Options{Source: source})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET 未设置，接口不做鉴权")
	}

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      NewRouter(a),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务启动", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return err
	}
	logger.Info("正在关闭服务...")

	// 创建一个5秒超时的上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("服务已停止")
	return nil
}
