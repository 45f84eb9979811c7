package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// EntryServiceInterface はエントリハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	// ListEntries は登録済みエントリの一覧を返す。
	ListEntries(ctx context.Context) ([]*model.Entry, error)
	// AddEntry は認証情報を検証してエントリを登録する。
	AddEntry(ctx context.Context, email, password string) (*model.Entry, error)
	// RemoveEntry はエントリを削除する。
	RemoveEntry(ctx context.Context, id string) error
}

// EntryHandler はSkylightアカウント（エントリ）管理のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// addEntryRequest はエントリ登録リクエストのボディ。
type addEntryRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// entryResponse はエントリ情報のAPIレスポンス。パスワードは含めない。
type entryResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ListEntries はエントリ一覧を返す。
// GET /api/entries
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]entryResponse, len(entries))
	for i, e := range entries {
		results[i] = toEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, results)
}

// AddEntry はエントリを登録する。
// POST /api/entries
func (h *EntryHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	e, err := h.service.AddEntry(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

// DeleteEntry はエントリを削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")

	if err := h.service.RemoveEntry(r.Context(), entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toEntryResponse(e *model.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
	}
}
