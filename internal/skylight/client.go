// Package skylight はSkylightカレンダーAPIのクライアントを提供する。
// セッション（認証トークン）の管理、フレーム・カテゴリ・チョアの取得、
// およびカテゴリごとのタスク完了判定を含む。
package skylight

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/skylight-chores/internal/metrics"
)

const (
	// DefaultBaseURL はSkylight APIのベースURL。
	DefaultBaseURL = "https://app.ourskylight.com"
	// userAgent はリクエストに付与するUser-Agent。
	userAgent = "skylight-chores/1.0"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（5MB）。
	maxResponseSize = 5 << 20
	// reauthTimeout は共有される再認証1回あたりの上限時間。
	reauthTimeout = 30 * time.Second
)

// session は認証済みセッションの状態を保持する。
// authTokenが空の場合はトークンが無効であることを示す。
type session struct {
	userID    string
	authToken string // base64("{user_id}:{token}")
	email     string
	password  string
}

// Client はSkylight APIのクライアント。
// 複数のセンサーから並行に呼び出されるため、セッションとフレームIDはmuで保護する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string // テスト用にベースURLを差し替え可能
	location   *time.Location
	now        func() time.Time

	mu      sync.RWMutex
	session *session
	frameID string

	reauth singleflight.Group
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithBaseURL はAPIのベースURLを差し替える。
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLocation は「今日」の日付を決めるタイムゾーンを指定する。
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithMetrics はメトリクスの記録先を指定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics.NopCollector{},
		baseURL:    DefaultBaseURL,
		location:   time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate はメールアドレスとパスワードでSkylightにログインし、セッションを置き換える。
// 認証情報が拒否された場合は*AuthenticationErrorを返し、保持していたセッションを破棄する。
// 通信エラーの場合はトークンのみ破棄し、次回の認証付きリクエストで再認証を試みる。
func (c *Client) Authenticate(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		c.metrics.RecordAuthAttempt(metrics.AuthResultRejected)
		return &AuthenticationError{Err: errors.New("email and password are required")}
	}

	s, err := c.createSession(ctx, email, password)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// 認証情報が拒否された場合のみセッションを破棄する。
		// 5xxや通信エラーでは認証情報を残し、次回の認証付きリクエストで再認証する。
		if IsCredentialsRejected(err) {
			c.session = nil
		} else {
			c.session = &session{email: email, password: password}
		}
		return err
	}

	// 別ユーザーでログインし直した場合はキャッシュ済みフレームを無効化する
	if c.session == nil || c.session.userID != s.userID {
		c.frameID = ""
	}
	c.session = s

	c.logger.Info("Skylightへの認証に成功しました",
		slog.String("user_id", s.userID),
	)
	return nil
}

// createSession はPOST /api/sessionsを呼び出してセッションを生成する。
func (c *Client) createSession(ctx context.Context, email, password string) (*session, error) {
	payload, err := json.Marshal(sessionRequest{Email: email, Password: password})
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("認証リクエストの生成に失敗しました: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordRequestLatency(time.Since(start))
	if err != nil {
		c.metrics.RecordAuthAttempt(metrics.AuthResultError)
		c.logger.Error("Skylight認証APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, &AuthenticationError{Err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		authErr := &AuthenticationError{StatusCode: resp.StatusCode}
		if authErr.Rejected() {
			c.metrics.RecordAuthAttempt(metrics.AuthResultRejected)
		} else {
			c.metrics.RecordAuthAttempt(metrics.AuthResultError)
		}
		c.logger.Error("Skylight認証APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, authErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.RecordAuthAttempt(metrics.AuthResultError)
		return nil, &AuthenticationError{Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	var result sessionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.metrics.RecordAuthAttempt(metrics.AuthResultError)
		return nil, &AuthenticationError{Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}

	userID := string(result.Data.ID)
	token := result.Data.Attributes.Token
	if userID == "" || token == "" {
		c.metrics.RecordAuthAttempt(metrics.AuthResultError)
		return nil, &AuthenticationError{Err: errors.New("レスポンスにユーザーIDまたはトークンが含まれていません")}
	}

	c.metrics.RecordAuthAttempt(metrics.AuthResultSuccess)
	return &session{
		userID:    userID,
		authToken: base64.StdEncoding.EncodeToString([]byte(userID + ":" + token)),
		email:     email,
		password:  password,
	}, nil
}

// UserID は認証済みユーザーのIDを返す。未認証の場合は空文字列。
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.authToken == "" {
		return ""
	}
	return c.session.userID
}

// Authenticated は有効なトークンを保持しているかを返す。
func (c *Client) Authenticated() bool {
	return c.UserID() != ""
}

// FrameID はキャッシュ済みのフレームIDを返す。未解決の場合は空文字列。
func (c *Client) FrameID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameID
}

// currentToken は現在の認証トークンを返す。
// トークンが無効で認証情報が残っている場合はサイレントに再認証する。
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil {
		return "", &AuthenticationError{Err: ErrNotAuthenticated}
	}
	if s.authToken != "" {
		return s.authToken, nil
	}
	return c.reauthenticate(ctx, "")
}

// reauthenticate は保持している認証情報で再認証し、新しいトークンを返す。
// 並行する再認証はsingleflightで1回にまとめる。
// 共有される再認証は最初の呼び出し元のキャンセルに影響されないよう、キャンセルを切り離してreauthTimeoutで打ち切る。
// 各呼び出し元は自身のctxが終了した時点で待機をやめる。
// staleTokenと異なるトークンが既に設定されていれば、他のgoroutineが更新済みとみなしてそれを返す。
func (c *Client) reauthenticate(ctx context.Context, staleToken string) (string, error) {
	ch := c.reauth.DoChan("reauth", func() (any, error) {
		c.mu.RLock()
		s := c.session
		c.mu.RUnlock()

		if s == nil || s.email == "" {
			return "", &AuthenticationError{Err: ErrNotAuthenticated}
		}
		if s.authToken != "" && s.authToken != staleToken {
			return s.authToken, nil
		}

		c.metrics.RecordReauth()
		c.logger.Info("保持している認証情報で再認証します")

		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reauthTimeout)
		defer cancel()

		if err := c.Authenticate(flightCtx, s.email, s.password); err != nil {
			return "", err
		}

		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.session == nil || c.session.authToken == "" {
			return "", &AuthenticationError{Err: ErrNotAuthenticated}
		}
		return c.session.authToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// doAuthenticated は認証付きGETリクエストを実行し、レスポンスボディを返す。
// 401を受けた場合は1回だけ再認証し、元のリクエストを1回だけ再送する。
// 再送も失敗した場合はその失敗を返す（ループしない）。
func (c *Client) doAuthenticated(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, op, path, query, token)
	if !errors.Is(err, errUnauthorized) {
		return body, err
	}

	c.logger.Info("トークンが失効しているため再認証します",
		slog.String("operation", op),
	)

	newToken, err := c.reauthenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	return c.get(ctx, op, path, query, newToken)
}

// get はAuthorizationヘッダー付きでGETリクエストを1回実行する。
// 200以外のステータスは*TransientFetchErrorとして返す（401はerrUnauthorizedをラップする）。
func (c *Client) get(ctx context.Context, op, path string, query url.Values, token string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransientFetchError{Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Authorization", "Basic "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordRequestLatency(time.Since(start))
	if err != nil {
		return nil, &TransientFetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)

	switch ClassifyStatus(resp.StatusCode) {
	case StatusOK:
	case StatusUnauthorized:
		return nil, &TransientFetchError{Op: op, StatusCode: resp.StatusCode, Err: errUnauthorized}
	default:
		return nil, &TransientFetchError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransientFetchError{Op: op, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}
	return body, nil
}
