package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// expirySkew 提前一分钟视为过期
const expirySkew = time.Minute

// TokenManager 维护访问令牌，过期或被拒绝时用 refresh token 换取新令牌
type TokenManager struct {
	cfg   config.PublisherConfig
	http  *http.Client
	store TokenStore
	now   func() time.Time

	mu sync.Mutex
}

func NewTokenManager(cfg config.PublisherConfig, httpClient *http.Client, store TokenStore) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if store == nil {
		store = &MemoryTokenStore{}
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	m := &TokenManager{cfg: cfg, http: httpClient, store: store, now: time.Now}
	if cfg.AccessToken != "" {
		if _, ok, _ := store.Load(context.Background()); !ok {
			_ = store.Save(context.Background(), Token{AccessToken: cfg.AccessToken})
		}
	}
	return m
}

// HasCredentials 具备换取或使用令牌的最少配置
func (m *TokenManager) HasCredentials() bool {
	return m.cfg.ClientID != "" && m.cfg.ClientSecret != "" && (m.cfg.AccessToken != "" || m.cfg.RefreshToken != "")
}

// EnsureValidToken 返回可用的访问令牌，必要时刷新
func (m *TokenManager) EnsureValidToken(ctx context.Context) (string, error) {
	if !m.HasCredentials() {
		return "", entity.Errorf(entity.KindAuthRequired, "ensure token", "publishing credentials are not configured")
	}
	tok, ok, err := m.store.Load(ctx)
	if err != nil {
		logger.Warnf("token store load failed error=%v", err)
	}
	if ok && tok.Valid(m.now()) {
		return tok.AccessToken, nil
	}
	return m.Refresh(ctx, tok.AccessToken)
}

// Refresh 换取新令牌。stale 为调用方认为已失效的令牌：
// 其他调用方已经刷新过时直接返回新令牌，避免并发重复刷新。
func (m *TokenManager) Refresh(ctx context.Context, stale string) (string, error) {
	const op = "refresh token"
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok, ok, _ := m.store.Load(ctx); ok && tok.AccessToken != stale && tok.Valid(m.now()) {
		return tok.AccessToken, nil
	}
	if m.cfg.RefreshToken == "" {
		return "", entity.Errorf(entity.KindAuthRequired, op, "access token rejected and no refresh token configured")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.RefreshTimeout)
	defer cancel()

	form := url.Values{
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"refresh_token": {m.cfg.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", entity.NewAuthRequiredError(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", entity.NewTransientError(op, fmt.Errorf("token endpoint connection failed: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 500 {
		return "", entity.NewTransientError(op, fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		logger.Error("Token refresh rejected", map[string]interface{}{"status": resp.StatusCode, "body": truncateBody(body)})
		return "", entity.NewAuthRequiredError(op, fmt.Errorf("token refresh rejected with status %d", resp.StatusCode))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		if err == nil {
			err = errors.New("empty access_token")
		}
		return "", entity.NewAuthRequiredError(op, fmt.Errorf("decode token response: %w", err))
	}

	tok := Token{AccessToken: payload.AccessToken}
	if payload.ExpiresIn > 0 {
		tok.ExpiresAt = m.now().Add(time.Duration(payload.ExpiresIn)*time.Second - expirySkew)
	}
	if err := m.store.Save(ctx, tok); err != nil {
		logger.Warnf("token store save failed error=%v", err)
	}
	logger.Info("Access token refreshed", map[string]interface{}{"expires_at": tok.ExpiresAt})
	return tok.AccessToken, nil
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
