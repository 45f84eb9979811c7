// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// ErrDuplicateEntry は同一メールアドレスのエントリが既に存在する場合のエラー。
var ErrDuplicateEntry = errors.New("repository: duplicate entry")

// EntryRepository はアカウントエントリの永続化インターフェース。
type EntryRepository interface {
	// List は全エントリを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Entry, error)

	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Entry, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でエントリを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Entry, error)

	// Create はエントリを作成する。同一メールアドレスが存在する場合はErrDuplicateEntryを返す。
	Create(ctx context.Context, entry *model.Entry) error

	// DeleteByID は指定IDのエントリを削除する。削除した場合はtrueを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}
