// Package poll はセンサーの定期ポーリングを提供する。
// 固定間隔のティッカーで全センサーを更新し、並列数をsemaphoreで制御する。
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/skylight-chores/internal/sensor"
)

const (
	// DefaultInterval はポーリング間隔のデフォルト値（5分）。
	DefaultInterval = 5 * time.Minute
	// defaultMaxConcurrency は並列数のデフォルト値。
	defaultMaxConcurrency = 4
)

// SensorSource はポーリング対象のセンサー一覧を提供するインターフェース。
type SensorSource interface {
	Entities() []sensor.Entity
}

// Scheduler はセンサーのポーリングと並列制御を行う。
// センサーは互いに独立しており、1つの失敗が他に影響しない。
type Scheduler struct {
	source         SensorSource
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(source SensorSource, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Scheduler{
		source:         source,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。起動直後に1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.run(ctx, interval, true)
}

// StartAfterInterval はStartと同じだが、起動直後の実行を省き最初のティックから更新する。
// センサーが登録時に更新済みの場合に使う。
func (s *Scheduler) StartAfterInterval(ctx context.Context, interval time.Duration) {
	s.run(ctx, interval, false)
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, immediate bool) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ポーリングスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Bool("immediate", immediate),
	)

	if immediate {
		s.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ポーリングスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全センサーを1回ずつ更新する。
// 全センサーの更新が終わるまでブロックする。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	entities := s.source.Entities()
	if len(entities) == 0 {
		s.logger.Info("ポーリング対象のセンサーはありません")
		return
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, entity := range entities {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(e sensor.Entity) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			e.Update(ctx)
		}(entity)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("ポーリングサイクルが完了しました",
		slog.Int("sensor_count", len(entities)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
