package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresEntryRepo はPostgreSQLを使用したエントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// List は全エントリを作成日時の昇順で返す。
func (r *PostgresEntryRepo) List(ctx context.Context) ([]*model.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, email, password, created_at
		 FROM entries
		 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.Entry
	for rows.Next() {
		entry := &model.Entry{}
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Email, &entry.Password, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	// UUID形式でないIDはentriesに存在し得ない
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.findOne(ctx,
		`SELECT id, title, email, password, created_at FROM entries WHERE id = $1`,
		id,
	)
}

// FindByEmail はメールアドレスでエントリを検索する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByEmail(ctx context.Context, email string) (*model.Entry, error) {
	return r.findOne(ctx,
		`SELECT id, title, email, password, created_at FROM entries WHERE lower(email) = lower($1)`,
		email,
	)
}

func (r *PostgresEntryRepo) findOne(ctx context.Context, query string, arg string) (*model.Entry, error) {
	entry := &model.Entry{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&entry.ID, &entry.Title, &entry.Email, &entry.Password, &entry.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return entry, nil
}

// Create はエントリを作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (id, title, email, password, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Title, entry.Email, entry.Password, entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのエントリを削除する。
func (r *PostgresEntryRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
