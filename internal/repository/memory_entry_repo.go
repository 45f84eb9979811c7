package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// MemoryEntryRepo はメモリ上にエントリを保持するリポジトリ。
// DATABASE_URLが未設定の場合に使用し、プロセス終了時に内容は失われる。
type MemoryEntryRepo struct {
	mu      sync.RWMutex
	entries map[string]*model.Entry
}

// NewMemoryEntryRepo はMemoryEntryRepoを生成する。
func NewMemoryEntryRepo() *MemoryEntryRepo {
	return &MemoryEntryRepo{
		entries: make(map[string]*model.Entry),
	}
}

// List は全エントリを作成日時の昇順で返す。
func (r *MemoryEntryRepo) List(ctx context.Context) ([]*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		copied := *e
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *MemoryEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

// FindByEmail はメールアドレスでエントリを検索する。見つからない場合はnilを返す。
func (r *MemoryEntryRepo) FindByEmail(ctx context.Context, email string) (*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if strings.EqualFold(e.Email, email) {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

// Create はエントリを作成する。
func (r *MemoryEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if strings.EqualFold(e.Email, entry.Email) {
			return ErrDuplicateEntry
		}
	}
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

// DeleteByID は指定IDのエントリを削除する。
func (r *MemoryEntryRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false, nil
	}
	delete(r.entries, id)
	return true, nil
}

var _ EntryRepository = (*MemoryEntryRepo)(nil)
