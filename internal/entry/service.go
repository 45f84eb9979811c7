package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skylight-chores/internal/model"
	"github.com/hitoshi/skylight-chores/internal/repository"
	"github.com/hitoshi/skylight-chores/internal/skylight"
)

// Service はエントリの登録・削除のサービス層。
// 重複チェック → 認証情報の検証 → 保存 → セットアップのフローを統括する。
type Service struct {
	repo    repository.EntryRepository
	manager *Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.EntryRepository, manager *Manager, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		manager: manager,
		logger:  logger,
		now:     time.Now,
	}
}

// ListEntries は登録済みエントリの一覧を返す。
func (s *Service) ListEntries(ctx context.Context) ([]*model.Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("エントリ一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// AddEntry はSkylightアカウントを検証して登録し、センサーをセットアップする。
// セットアップに失敗した場合は保存したエントリを削除する。
func (s *Service) AddEntry(ctx context.Context, email, password string) (*model.Entry, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewInvalidRequestError("email is required")
	}
	if password == "" {
		return nil, model.NewInvalidRequestError("password is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("エントリの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEntryError()
	}

	if err := s.manager.Validate(ctx, email, password); err != nil {
		s.logger.Warn("認証情報の検証に失敗しました",
			slog.String("error", err.Error()),
		)
		if skylight.IsCredentialsRejected(err) {
			return nil, model.NewAuthFailedError()
		}
		// Skylight側の障害では認証情報の正否が判定できない
		if skylight.IsAuthenticationError(err) {
			return nil, model.NewEntrySetupFailedError(err.Error())
		}
		return nil, fmt.Errorf("認証情報の検証に失敗しました: %w", err)
	}

	e := &model.Entry{
		ID:        uuid.New().String(),
		Title:     model.DefaultEntryTitle,
		Email:     email,
		Password:  password,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, model.NewDuplicateEntryError()
		}
		return nil, fmt.Errorf("エントリの保存に失敗しました: %w", err)
	}

	if err := s.manager.Setup(ctx, e); err != nil {
		if _, delErr := s.repo.DeleteByID(ctx, e.ID); delErr != nil {
			s.logger.Error("セットアップ失敗後のエントリ削除に失敗しました",
				slog.String("entry_id", e.ID),
				slog.String("error", delErr.Error()),
			)
		}
		if skylight.IsCredentialsRejected(err) {
			return nil, model.NewAuthFailedError()
		}
		return nil, model.NewEntrySetupFailedError(err.Error())
	}

	return e, nil
}

// RemoveEntry はエントリのセンサーをアンロードし、エントリを削除する。
func (s *Service) RemoveEntry(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("エントリの検索に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewEntryNotFoundError(id)
	}

	s.manager.Unload(id)

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("エントリの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewEntryNotFoundError(id)
	}
	return nil
}
