package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/barberbook/internal/metrics"
	"github.com/hitoshi/barberbook/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ストア
	Sessions     SessionStoreInterface
	Appointments AppointmentStoreInterface

	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// メトリクス公開用
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → LoggingMiddleware → RecoveryMiddleware → SecurityHeadersMiddleware
//
// /health と /metrics もチェーンを通る（認証の概念はサーバー側にないため
// 区別は不要）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	sessionHandler := NewSessionHandler(deps.Sessions, deps.Appointments)
	apptHandler := NewAppointmentsHandler(deps.Appointments, deps.Sessions)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheusメトリクス
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// セッション管理
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", sessionHandler.Get)
		r.Post("/register", sessionHandler.Register)
		r.Post("/login", sessionHandler.Login)
		r.Post("/logout", sessionHandler.Logout)
	})

	// 予約管理
	r.Route("/api/appointments", func(r chi.Router) {
		r.Get("/", apptHandler.List)
		r.Post("/", apptHandler.Create)
		r.Post("/refresh", apptHandler.Refresh)

		// 一括削除は位置指定のためボディを取る（DELETEメソッドでは表現しない）
		r.Post("/delete", apptHandler.BulkDelete)

		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", apptHandler.Update)
			r.Delete("/", apptHandler.Delete)
		})
	})

	return r
}
