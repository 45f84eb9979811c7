package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skylight-chores/internal/model"
	"github.com/hitoshi/skylight-chores/internal/sensor"
)

// SensorProvider はセンサーハンドラーが必要とするインターフェース。
// entry.Managerが実装する。
type SensorProvider interface {
	// Sensors は全センサーをユニークIDの昇順で返す。
	Sensors() []*sensor.TaskCompletionSensor
	// Sensor はユニークIDでセンサーを検索する。
	Sensor(uniqueID string) (*sensor.TaskCompletionSensor, bool)
	// ForceUpdate は全センサーを即座に再取得する。
	ForceUpdate(ctx context.Context)
}

// SensorHandler はセンサー状態参照と強制更新のHTTPハンドラー。
type SensorHandler struct {
	provider SensorProvider
}

// NewSensorHandler はSensorHandlerを生成する。
func NewSensorHandler(provider SensorProvider) *SensorHandler {
	return &SensorHandler{provider: provider}
}

// ListSensors はセンサー一覧を返す。
// GET /api/sensors
func (h *SensorHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors := h.provider.Sensors()

	snapshots := make([]sensor.Snapshot, len(sensors))
	for i, s := range sensors {
		snapshots[i] = s.Snapshot()
	}

	writeJSON(w, http.StatusOK, snapshots)
}

// GetSensor はセンサー1件を返す。
// GET /api/sensors/{id}
func (h *SensorHandler) GetSensor(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "id")

	s, ok := h.provider.Sensor(uniqueID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSensorNotFoundError(uniqueID))
		return
	}

	writeJSON(w, http.StatusOK, s.Snapshot())
}

const (
	// ForceUpdateTimeout は強制更新1回の上限時間。
	// サーバーのWriteTimeoutより長いため、このルートのみ書き込み期限を延長する。
	ForceUpdateTimeout = 2 * time.Minute
	// forceUpdateWriteGrace は更新打ち切り後に204を書き込むための猶予。
	forceUpdateWriteGrace = 5 * time.Second
)

// ForceUpdate は全センサーを再取得する。全更新の完了後に204を返す。
// 更新はForceUpdateTimeoutで打ち切られ、未完了のセンサーは次回のポーリングで更新される。
// POST /api/force_update
func (h *SensorHandler) ForceUpdate(w http.ResponseWriter, r *http.Request) {
	// 期限を延長できないWriterではサーバー既定の期限のまま処理する
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(ForceUpdateTimeout + forceUpdateWriteGrace))

	ctx, cancel := context.WithTimeout(r.Context(), ForceUpdateTimeout)
	defer cancel()

	h.provider.ForceUpdate(ctx)
	w.WriteHeader(http.StatusNoContent)
}
