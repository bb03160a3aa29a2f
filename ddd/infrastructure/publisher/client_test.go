package publisher

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/config"
)

type platform struct {
	uploads     atomic.Int32
	refreshes   atomic.Int32
	uploadCodes []int
	validToken  atomic.Value
	lastMeta    atomic.Value
	lastVideo   atomic.Value
}

func newPlatform(codes ...int) *platform {
	p := &platform{uploadCodes: codes}
	p.validToken.Store("fresh-token")
	return p
}

func (p *platform) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.refreshes.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh-me" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": p.validToken.Load(), "expires_in": 3600})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		n := int(p.uploads.Add(1)) - 1
		if r.Header.Get("Authorization") != "Bearer "+p.validToken.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n < len(p.uploadCodes) && p.uploadCodes[n] != http.StatusOK {
			w.WriteHeader(p.uploadCodes[n])
			_, _ = io.WriteString(w, `{"error":"nope"}`)
			return
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		metaPart, err := mr.NextPart()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		meta, _ := io.ReadAll(metaPart)
		p.lastMeta.Store(string(meta))
		videoPart, err := mr.NextPart()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		video, _ := io.ReadAll(videoPart)
		p.lastVideo.Store(string(video))
		_, _ = io.WriteString(w, `{"id":"abc123"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, accessToken string) (*Client, *[]time.Duration) {
	t.Helper()
	cfg := config.PublisherConfig{
		ClientID:       "client",
		ClientSecret:   "secret",
		AccessToken:    accessToken,
		RefreshToken:   "refresh-me",
		TokenURL:       srv.URL + "/token",
		UploadURL:      srv.URL + "/upload",
		WatchURLPrefix: "https://videos.example/watch?v=",
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
	}
	var slept []time.Duration
	tokens := NewTokenManager(cfg, srv.Client(), nil)
	c := NewClient(cfg, tokens, WithHTTPClient(srv.Client()), WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	return c, &slept
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, []byte("fake-mp4-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var testMeta = vo.PublishMetadata{
	Title:         "주님의 은혜",
	Description:   "desc",
	Tags:          []string{"Shorts", "shorts", "설교"},
	CategoryID:    "22",
	PrivacyStatus: "public",
	Language:      "ko",
}

func TestPublishUploadsMultipart(t *testing.T) {
	p := newPlatform()
	srv := p.server(t)
	c, slept := newTestClient(t, srv, "fresh-token")

	res, err := c.Publish(context.Background(), writeVideo(t), testMeta)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.ExternalID != "abc123" || res.ExternalURL != "https://videos.example/watch?v=abc123" {
		t.Fatalf("unexpected result %+v", res)
	}
	if p.refreshes.Load() != 0 || len(*slept) != 0 {
		t.Fatalf("unexpected refresh/retry: refreshes=%d sleeps=%v", p.refreshes.Load(), *slept)
	}
	if got := p.lastVideo.Load(); got != "fake-mp4-bytes" {
		t.Fatalf("video part = %v", got)
	}
	var resource uploadResource
	if err := json.Unmarshal([]byte(p.lastMeta.Load().(string)), &resource); err != nil {
		t.Fatalf("metadata part: %v", err)
	}
	if resource.Snippet.CategoryID != "22" || resource.Status.PrivacyStatus != "public" {
		t.Fatalf("unexpected metadata %+v", resource)
	}
	if len(resource.Snippet.Tags) != 2 {
		t.Fatalf("tags not deduplicated: %v", resource.Snippet.Tags)
	}
}

func TestPublishRefreshesOnceOnAuthFailure(t *testing.T) {
	p := newPlatform()
	srv := p.server(t)
	c, slept := newTestClient(t, srv, "stale-token")

	res, err := c.Publish(context.Background(), writeVideo(t), testMeta)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.ExternalID != "abc123" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := p.refreshes.Load(); got != 1 {
		t.Fatalf("refreshes = %d, want 1", got)
	}
	if got := p.uploads.Load(); got != 2 {
		t.Fatalf("uploads = %d, want 2", got)
	}
	if len(*slept) != 0 {
		t.Fatalf("auth retry must not wait, slept %v", *slept)
	}
}

func TestPublishPermanentErrorDoesNotRetry(t *testing.T) {
	p := newPlatform(http.StatusBadRequest)
	srv := p.server(t)
	c, _ := newTestClient(t, srv, "fresh-token")

	_, err := c.Publish(context.Background(), writeVideo(t), testMeta)
	if !entity.IsKind(err, entity.KindPermanentExternal) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if got := p.uploads.Load(); got != 1 {
		t.Fatalf("uploads = %d, want 1", got)
	}
}

func TestPublishTransientRetriesWithDelay(t *testing.T) {
	p := newPlatform(http.StatusServiceUnavailable, http.StatusBadGateway)
	srv := p.server(t)
	c, slept := newTestClient(t, srv, "fresh-token")

	if _, err := c.Publish(context.Background(), writeVideo(t), testMeta); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := p.uploads.Load(); got != 3 {
		t.Fatalf("uploads = %d, want 3", got)
	}
	if len(*slept) != 2 || (*slept)[0] != 5*time.Second {
		t.Fatalf("unexpected sleeps %v", *slept)
	}
}

func TestPublishExhaustedBecomesPermanent(t *testing.T) {
	codes := []int{500, 500, 500, 500, 500}
	p := newPlatform(codes...)
	srv := p.server(t)
	c, _ := newTestClient(t, srv, "fresh-token")

	_, err := c.Publish(context.Background(), writeVideo(t), testMeta)
	if !entity.IsPermanent(err) {
		t.Fatalf("expected permanent after exhaustion, got %v", err)
	}
	if got := p.uploads.Load(); got != 4 {
		t.Fatalf("uploads = %d, want 1 + 3 retries", got)
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPublishMissingCredentials(t *testing.T) {
	p := newPlatform()
	srv := p.server(t)
	tokens := NewTokenManager(config.PublisherConfig{TokenURL: srv.URL + "/token"}, srv.Client(), nil)
	c := NewClient(config.PublisherConfig{UploadURL: srv.URL + "/upload", MaxRetries: 3}, tokens,
		WithSleep(func(context.Context, time.Duration) error { return nil }))

	_, err := c.Publish(context.Background(), writeVideo(t), testMeta)
	if !entity.IsKind(err, entity.KindAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if p.uploads.Load() != 0 {
		t.Fatalf("upload attempted without credentials")
	}
}

func TestRefreshFailureIsAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()
	m := NewTokenManager(config.PublisherConfig{
		ClientID: "c", ClientSecret: "s", RefreshToken: "r", TokenURL: srv.URL,
	}, srv.Client(), nil)

	_, err := m.EnsureValidToken(context.Background())
	if !entity.IsKind(err, entity.KindAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	if (Token{AccessToken: "x", ExpiresAt: now.Add(-time.Second)}).Valid(now) {
		t.Fatal("expired token reported valid")
	}
	if !(Token{AccessToken: "x"}).Valid(now) {
		t.Fatal("token without expiry should be valid")
	}
}

func TestStatusErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   entity.ErrorKind
	}{
		{http.StatusOK, ""},
		{http.StatusUnauthorized, entity.KindAuthRequired},
		{http.StatusRequestTimeout, entity.KindTransientExternal},
		{http.StatusTooManyRequests, entity.KindTransientExternal},
		{http.StatusBadGateway, entity.KindTransientExternal},
		{http.StatusBadRequest, entity.KindPermanentExternal},
		{http.StatusForbidden, entity.KindPermanentExternal},
		{http.StatusRequestEntityTooLarge, entity.KindPermanentExternal},
	}
	for _, c := range cases {
		err := statusError("upload", c.status, []byte("body"))
		if got := entity.KindOf(err); got != c.kind {
			t.Errorf("status %d: kind = %q, want %q", c.status, got, c.kind)
		}
	}
}
