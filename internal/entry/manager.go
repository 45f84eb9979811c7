// Package entry はSkylightアカウント（エントリ）ごとのAPIクライアントとセンサー群を管理する。
// エントリIDをキーとした明示的なマップで実行時の状態を保持する。
package entry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/skylight-chores/internal/metrics"
	"github.com/hitoshi/skylight-chores/internal/model"
	"github.com/hitoshi/skylight-chores/internal/repository"
	"github.com/hitoshi/skylight-chores/internal/sensor"
	"github.com/hitoshi/skylight-chores/internal/worker/poll"
)

// SkylightClient はエントリが利用するAPIクライアントのインターフェース。
// skylight.Clientが実装する。
type SkylightClient interface {
	Authenticate(ctx context.Context, email, password string) error
	FetchCategories(ctx context.Context) ([]model.Category, error)
	CheckCategoryCompletion(ctx context.Context, categoryID string) (bool, error)
}

// ClientFactory はエントリごとに新しいAPIクライアントを生成する。
type ClientFactory func() SkylightClient

// runtime はセットアップ済みエントリ1件分の実行時状態。
type runtime struct {
	entry   *model.Entry
	client  SkylightClient
	sensors []*sensor.TaskCompletionSensor
}

// Manager はエントリごとのクライアントとセンサーを保持する。
type Manager struct {
	newClient ClientFactory
	sanitizer sensor.LabelSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	scheduler *poll.Scheduler

	mu       sync.RWMutex
	runtimes map[string]*runtime
}

// NewManager はManagerの新しいインスタンスを生成する。
// maxConcurrencyはセンサー更新の並列数（0以下でデフォルト値）。
func NewManager(
	newClient ClientFactory,
	sanitizer sensor.LabelSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Manager {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	m := &Manager{
		newClient: newClient,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		runtimes:  make(map[string]*runtime),
	}
	m.scheduler = poll.NewScheduler(m, logger, maxConcurrency)
	return m
}

// Validate は使い捨てのクライアントで認証情報を検証する。
// 拒否された場合は*skylight.AuthenticationErrorを返す。
func (m *Manager) Validate(ctx context.Context, email, password string) error {
	return m.newClient().Authenticate(ctx, email, password)
}

// Setup はエントリのクライアントを認証し、プロフィールに紐づくカテゴリごとにセンサーを生成して登録する。
// 同じIDのエントリが既に登録されている場合は置き換える。
// 生成したセンサーは登録前に1回更新する。
func (m *Manager) Setup(ctx context.Context, e *model.Entry) error {
	client := m.newClient()
	if err := client.Authenticate(ctx, e.Email, e.Password); err != nil {
		return fmt.Errorf("failed to authenticate entry %s: %w", e.ID, err)
	}

	categories, err := client.FetchCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch categories for entry %s: %w", e.ID, err)
	}

	var sensors []*sensor.TaskCompletionSensor
	for _, category := range categories {
		if !category.LinkedToProfile {
			continue
		}
		sensors = append(sensors, sensor.NewTaskCompletionSensor(
			e.ID, category, client, m.sanitizer, m.metrics, m.logger,
		))
	}

	for _, s := range sensors {
		s.Update(ctx)
	}

	m.mu.Lock()
	previous := m.runtimes[e.ID]
	m.runtimes[e.ID] = &runtime{entry: e, client: client, sensors: sensors}
	m.mu.Unlock()

	if previous != nil {
		m.forgetSensors(previous, sensors)
	}

	m.logger.Info("エントリをセットアップしました",
		slog.String("entry_id", e.ID),
		slog.Int("category_count", len(categories)),
		slog.Int("sensor_count", len(sensors)),
	)
	return nil
}

// Unload はエントリの実行時状態を破棄する。未登録の場合はfalseを返す。
func (m *Manager) Unload(entryID string) bool {
	m.mu.Lock()
	rt, ok := m.runtimes[entryID]
	delete(m.runtimes, entryID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.forgetSensors(rt, nil)

	m.logger.Info("エントリをアンロードしました",
		slog.String("entry_id", entryID),
	)
	return true
}

// forgetSensors は旧センサーを登録解除し、置き換え後も残るものを除いてメトリクスを削除する。
// 実行中のUpdateが削除後にゲージを復活させないよう、Retireを先に行う。
func (m *Manager) forgetSensors(old *runtime, kept []*sensor.TaskCompletionSensor) {
	keep := make(map[string]struct{}, len(kept))
	for _, s := range kept {
		keep[s.UniqueID()] = struct{}{}
	}
	for _, s := range old.sensors {
		s.Retire()
		if _, ok := keep[s.UniqueID()]; !ok {
			m.metrics.ForgetSensor(s.UniqueID())
		}
	}
}

// Loaded は指定エントリがセットアップ済みかを返す。
func (m *Manager) Loaded(entryID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.runtimes[entryID]
	return ok
}

// Sensors は全エントリのセンサーをユニークIDの昇順で返す。
func (m *Manager) Sensors() []*sensor.TaskCompletionSensor {
	m.mu.RLock()
	var sensors []*sensor.TaskCompletionSensor
	for _, rt := range m.runtimes {
		sensors = append(sensors, rt.sensors...)
	}
	m.mu.RUnlock()

	sort.Slice(sensors, func(i, j int) bool {
		if sensors[i].UniqueID() == sensors[j].UniqueID() {
			return sensors[i].EntryID() < sensors[j].EntryID()
		}
		return sensors[i].UniqueID() < sensors[j].UniqueID()
	})
	return sensors
}

// Sensor はユニークIDでセンサーを検索する。
func (m *Manager) Sensor(uniqueID string) (*sensor.TaskCompletionSensor, bool) {
	for _, s := range m.Sensors() {
		if s.UniqueID() == uniqueID {
			return s, true
		}
	}
	return nil, false
}

// Entities はポーリング対象のセンサーを返す。poll.SensorSourceを満たす。
func (m *Manager) Entities() []sensor.Entity {
	sensors := m.Sensors()
	entities := make([]sensor.Entity, len(sensors))
	for i, s := range sensors {
		entities[i] = s
	}
	return entities
}

// ForceUpdate は全センサーを即座に再取得する。全更新の完了までブロックする。
func (m *Manager) ForceUpdate(ctx context.Context) {
	m.logger.Info("全センサーの強制更新を開始します")
	m.scheduler.RunOnce(ctx)
}

// Run は定期ポーリングを開始する。コンテキストがキャンセルされるまでブロックする。
// センサーはSetupで更新済みのため、最初の更新は1間隔後に行う。
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	m.scheduler.StartAfterInterval(ctx, interval)
}

// LoadAll はリポジトリに保存された全エントリをセットアップする。
// セットアップに失敗したエントリはログに記録してスキップし、成功件数を返す。
func (m *Manager) LoadAll(ctx context.Context, repo repository.EntryRepository) (int, error) {
	entries, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if err := m.Setup(ctx, e); err != nil {
			if ctx.Err() != nil {
				return loaded, ctx.Err()
			}
			m.logger.Error("エントリのセットアップに失敗しました",
				slog.String("entry_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		loaded++
	}
	return loaded, nil
}

var _ poll.SensorSource = (*Manager)(nil)
