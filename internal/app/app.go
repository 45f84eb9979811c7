package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/skylight-chores/internal/config"
	"github.com/hitoshi/skylight-chores/internal/database"
	"github.com/hitoshi/skylight-chores/internal/entry"
	"github.com/hitoshi/skylight-chores/internal/handler"
	"github.com/hitoshi/skylight-chores/internal/logger"
	"github.com/hitoshi/skylight-chores/internal/metrics"
	"github.com/hitoshi/skylight-chores/internal/model"
	"github.com/hitoshi/skylight-chores/internal/repository"
	"github.com/hitoshi/skylight-chores/internal/security"
	"github.com/hitoshi/skylight-chores/internal/sensor"
	"github.com/hitoshi/skylight-chores/internal/skylight"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELが指定されていればログレベルを切り替える
	if cfg.LogLevel != slog.LevelInfo {
		logger.SetupDefault(w, cfg.LogLevel)
	}

	return cfg, nil
}

// runServe はAPIサーバーとポーリングスケジューラを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	// 1. リポジトリの初期化（DATABASE_URL未設定時はメモリ上に保持する）
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := seedEntry(ctx, repo, cfg); err != nil {
		return err
	}

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. エントリ管理の初期化
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	manager := entry.NewManager(
		newClientFactory(cfg, httpClient, collector, log),
		security.NewLabelSanitizer(),
		collector,
		log,
		cfg.PollMaxConcurrent,
	)

	loaded, err := manager.LoadAll(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	log.Info("entries loaded", slog.Int("count", loaded))

	entryService := entry.NewService(repo, manager, log)

	// 4. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		SensorProvider: manager,
		EntryService:   entryService,
		Gatherer:       registry,
	})

	// 5. ポーリングスケジューラの起動
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		manager.Run(ctx, cfg.PollInterval)
	}()

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		// POST /api/force_update はハンドラー内で書き込み期限をForceUpdateTimeoutまで延長する
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Duration("poll_interval", cfg.PollInterval),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-pollDone

	log.Info("API server stopped gracefully")
	return nil
}

// newClientFactory はエントリごとに独立したSkylightクライアントを生成する関数を返す。
// HTTPクライアントとメトリクスは全エントリで共有する。
func newClientFactory(
	cfg *config.Config,
	httpClient *http.Client,
	collector metrics.MetricsCollector,
	log *slog.Logger,
) entry.ClientFactory {
	return func() entry.SkylightClient {
		return skylight.NewClient(httpClient, log,
			skylight.WithBaseURL(cfg.SkylightBaseURL),
			skylight.WithLocation(cfg.Location),
			skylight.WithMetrics(collector),
		)
	}
}

// openRepository はDATABASE_URLの有無に応じてエントリリポジトリを選択する。
// 返すクローズ関数は必ず呼び出すこと。
func openRepository(ctx context.Context, cfg *config.Config) (repository.EntryRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL is not set, using in-memory entry repository")
		return repository.NewMemoryEntryRepo(), func() {}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return repository.NewPostgresEntryRepo(db), closeDB(db), nil
}

func closeDB(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close database", slog.String("error", err.Error()))
		}
	}
}

// seedEntry は環境変数の認証情報からエントリを1件登録する。
// 認証情報が未設定、または同じメールアドレスのエントリが既に存在する場合は何もしない。
func seedEntry(ctx context.Context, repo repository.EntryRepository, cfg *config.Config) error {
	if !cfg.HasCredentials() {
		return nil
	}

	existing, err := repo.FindByEmail(ctx, cfg.SkylightEmail)
	if err != nil {
		return fmt.Errorf("failed to look up seed entry: %w", err)
	}
	if existing != nil {
		return nil
	}

	e := &model.Entry{
		ID:        uuid.NewString(),
		Title:     model.DefaultEntryTitle,
		Email:     cfg.SkylightEmail,
		Password:  cfg.SkylightPassword,
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil
		}
		return fmt.Errorf("failed to seed entry: %w", err)
	}

	slog.Info("entry seeded from environment", slog.String("entry_id", e.ID))
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL, slog.Default()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// checkResult はcheckサブコマンドが出力するカテゴリ1件分の結果。
type checkResult struct {
	UniqueID        string `json:"unique_id"`
	CategoryID      string `json:"category_id"`
	Label           string `json:"label"`
	LinkedToProfile bool   `json:"linked_to_profile"`
	Completed       *bool  `json:"completed"`
}

// runCheck は環境変数の認証情報でログインし、カテゴリごとの完了状態をJSONでoutに書き込む。
// プロフィールに紐づかないカテゴリは判定せずcompletedをnullとする。
func runCheck(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if !cfg.HasCredentials() {
		return errors.New("SKYLIGHT_EMAIL and SKYLIGHT_PASSWORD are required for check")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := skylight.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, slog.Default(),
		skylight.WithBaseURL(cfg.SkylightBaseURL),
		skylight.WithLocation(cfg.Location),
	)

	if err := client.Authenticate(ctx, cfg.SkylightEmail, cfg.SkylightPassword); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	categories, err := client.FetchCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch categories: %w", err)
	}

	results := make([]checkResult, 0, len(categories))
	for _, c := range categories {
		r := checkResult{
			UniqueID:        sensor.UniqueIDFor(c.ID),
			CategoryID:      c.ID,
			Label:           c.Label,
			LinkedToProfile: c.LinkedToProfile,
		}
		if c.LinkedToProfile {
			done, err := client.CheckCategoryCompletion(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("failed to check category %s: %w", c.ID, err)
			}
			r.Completed = &done
		}
		results = append(results, r)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// パースできない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
