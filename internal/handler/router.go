package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/skylight-chores/internal/metrics"
	"github.com/hitoshi/skylight-chores/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// センサー
	SensorProvider SensorProvider

	// エントリ
	EntryService EntryServiceInterface

	// メトリクス（nilの場合は/metricsを公開しない）
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → LoggingMiddleware → RecoveryMiddleware → SecurityHeaders
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	sensorHandler := NewSensorHandler(deps.SensorProvider)
	entryHandler := NewEntryHandler(deps.EntryService)

	r.Get("/health", Health)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		// センサー状態
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", sensorHandler.ListSensors)
			r.Get("/{id}", sensorHandler.GetSensor)
		})

		// 強制更新
		r.Post("/force_update", sensorHandler.ForceUpdate)

		// エントリ管理
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", entryHandler.ListEntries)
			r.Post("/", entryHandler.AddEntry)
			r.Delete("/{id}", entryHandler.DeleteEntry)
		})
	})

	return r
}

// Health はヘルスチェックに応答する。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
