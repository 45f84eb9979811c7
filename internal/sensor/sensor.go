// Package sensor はカテゴリごとのタスク完了状態を保持するセンサーを提供する。
// センサーは外部のスケジューラからUpdateを呼ばれ、その都度状態を更新する。
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/skylight-chores/internal/metrics"
	"github.com/hitoshi/skylight-chores/internal/model"
)

const (
	// Domain はユニークIDの接頭辞。
	Domain = "skylight_calendar"
	// DeviceClassConnectivity はタスク完了センサーのデバイスクラス。
	DeviceClassConnectivity = "connectivity"
)

// Entity はスケジューラから更新されるセンサーの最小インターフェース。
type Entity interface {
	UniqueID() string
	Name() string
	State() State
	// Update は状態を再取得する。エラーは内部で処理し、呼び出し元には返さない。
	Update(ctx context.Context)
}

// CompletionChecker はカテゴリのタスク完了判定のインターフェース。
// skylight.Clientが実装する。
type CompletionChecker interface {
	CheckCategoryCompletion(ctx context.Context, categoryID string) (bool, error)
}

// LabelSanitizer はカテゴリ名をセンサー名に使えるテキストに変換する。
type LabelSanitizer interface {
	Sanitize(raw string) string
}

// Snapshot はセンサーの表示用スナップショット。
type Snapshot struct {
	UniqueID    string     `json:"unique_id"`
	Name        string     `json:"name"`
	EntryID     string     `json:"entry_id"`
	CategoryID  string     `json:"category_id"`
	State       State      `json:"state"`
	StateText   string     `json:"state_text"`
	Icon        string     `json:"icon"`
	DeviceClass string     `json:"device_class"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// TaskCompletionSensor は1カテゴリの「今日のタスクがすべて完了したか」を表すセンサー。
type TaskCompletionSensor struct {
	checker  CompletionChecker
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	entryID  string
	category model.Category
	uniqueID string
	name     string

	mu        sync.RWMutex
	state     State
	updatedAt time.Time
	retired   bool
}

// NewTaskCompletionSensor はTaskCompletionSensorを生成する。
// 初期状態はStateUnknown。
func NewTaskCompletionSensor(
	entryID string,
	category model.Category,
	checker CompletionChecker,
	sanitizer LabelSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *TaskCompletionSensor {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	label := category.Label
	if sanitizer != nil {
		label = sanitizer.Sanitize(label)
	}
	return &TaskCompletionSensor{
		checker:  checker,
		metrics:  collector,
		logger:   logger,
		entryID:  entryID,
		category: category,
		uniqueID: UniqueIDFor(category.ID),
		name:     fmt.Sprintf("%s Tasks Complete", label),
		state:    StateUnknown,
	}
}

// UniqueIDFor はカテゴリIDからセンサーのユニークIDを生成する。
func UniqueIDFor(categoryID string) string {
	return fmt.Sprintf("%s_%s_tasks_complete", Domain, categoryID)
}

// UniqueID はセンサーのユニークIDを返す。
func (s *TaskCompletionSensor) UniqueID() string {
	return s.uniqueID
}

// Name はセンサーの表示名を返す。
func (s *TaskCompletionSensor) Name() string {
	return s.name
}

// EntryID はセンサーを所有するエントリのIDを返す。
func (s *TaskCompletionSensor) EntryID() string {
	return s.entryID
}

// CategoryID は対象カテゴリのIDを返す。
func (s *TaskCompletionSensor) CategoryID() string {
	return s.category.ID
}

// DeviceClass はデバイスクラスを返す。
func (s *TaskCompletionSensor) DeviceClass() string {
	return DeviceClassConnectivity
}

// State は最後に取得した状態を返す。
func (s *TaskCompletionSensor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update はカテゴリの完了状態を取得して状態を更新する。
// 取得に失敗した場合は状態を不明にしてログに記録し、エラーは伝播させない。
func (s *TaskCompletionSensor) Update(ctx context.Context) {
	completed, err := s.checker.CheckCategoryCompletion(ctx, s.category.ID)

	next := StateUnknown
	if err != nil {
		s.logger.Error("タスク完了状態の取得に失敗しました",
			slog.String("sensor", s.uniqueID),
			slog.String("category_id", s.category.ID),
			slog.String("error", err.Error()),
		)
	} else {
		next = StateFromBool(completed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return
	}
	s.state = next
	s.updatedAt = time.Now()
	s.metrics.RecordSensorUpdate(s.uniqueID, next.String())
}

// Retire はセンサーを登録解除済みにする。以降のUpdateは状態とメトリクスを更新しない。
// 戻った時点で実行中のUpdateによるメトリクス記録は完了している。
func (s *TaskCompletionSensor) Retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
}

// Snapshot は現在の状態をスナップショットとして返す。
func (s *TaskCompletionSensor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		UniqueID:    s.uniqueID,
		Name:        s.name,
		EntryID:     s.entryID,
		CategoryID:  s.category.ID,
		State:       s.state,
		StateText:   s.state.Text(),
		Icon:        s.state.Icon(),
		DeviceClass: DeviceClassConnectivity,
	}
	if !s.updatedAt.IsZero() {
		updatedAt := s.updatedAt
		snap.UpdatedAt = &updatedAt
	}
	return snap
}

var _ Entity = (*TaskCompletionSensor)(nil)
