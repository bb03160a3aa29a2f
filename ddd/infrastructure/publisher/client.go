package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/gateway"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/metrics"
	"sermon-publisher/pkg/retry"
)

// Client 视频平台上传客户端
type Client struct {
	cfg    config.PublisherConfig
	http   *http.Client
	tokens *TokenManager
	sleep  retry.SleepFunc
}

// Option 可选配置
type Option func(*Client)

// WithSleep 替换重试等待函数
func WithSleep(fn retry.SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(cfg config.PublisherConfig, tokens *TokenManager, opts ...Option) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 5 * time.Minute
	}
	c := &Client{cfg: cfg, http: &http.Client{}, tokens: tokens, sleep: retry.ContextSleep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ gateway.VideoPublisher = (*Client)(nil)

// Publish 带自动重试的上传
func (c *Client) Publish(ctx context.Context, videoPath string, meta vo.PublishMetadata) (vo.PublishResult, error) {
	return c.UploadWithAutoRetry(ctx, videoPath, meta, c.cfg.MaxRetries)
}

// UploadWithAutoRetry AuthRequired 刷新令牌后立即重试，Transient 固定间隔后重试，
// Permanent 直接返回；重试耗尽后以 Permanent 返回最后一次错误。
func (c *Client) UploadWithAutoRetry(ctx context.Context, videoPath string, meta vo.PublishMetadata, maxRetries int) (vo.PublishResult, error) {
	var result vo.PublishResult
	token := ""

	policy := retry.Policy{
		MaxRetries: maxRetries,
		Classify:   classifyUploadError,
		Backoff:    retry.Fixed(c.cfg.RetryDelay),
		Sleep:      c.sleep,
		OnRetry: func(ctx context.Context, n int, cause error, class retry.Class) error {
			logger.FromContext(ctx).WithField("retry", n).WithField("max_retries", maxRetries).
				Warnf("upload retry: %v", cause)
			if entity.IsKind(cause, entity.KindAuthRequired) {
				fresh, err := c.tokens.Refresh(ctx, token)
				if err != nil {
					return err
				}
				token = fresh
			}
			return nil
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if token == "" {
			t, err := c.tokens.EnsureValidToken(ctx)
			if err != nil {
				return err
			}
			token = t
		}
		r, err := c.Upload(ctx, token, videoPath, meta)
		metrics.UploadAttempts.WithLabelValues(uploadOutcome(err)).Inc()
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		pe := entity.NewPermanentError("publish", exhausted)
		pe.Category = entity.CategoryOf(exhausted.Last)
		return vo.PublishResult{}, pe
	}
	if err != nil {
		return vo.PublishResult{}, err
	}
	logger.FromContext(ctx).WithField("external_id", result.ExternalID).Info("Video published")
	return result, nil
}

func classifyUploadError(err error) retry.Class {
	switch entity.KindOf(err) {
	case entity.KindAuthRequired:
		return retry.Immediate
	case entity.KindTransientExternal:
		return retry.Backoff
	default:
		return retry.Stop
	}
}

func uploadOutcome(err error) string {
	switch entity.KindOf(err) {
	case "":
		if err == nil {
			return "success"
		}
		return "error"
	case entity.KindAuthRequired:
		return "auth_required"
	case entity.KindTransientExternal:
		return "transient"
	default:
		return "permanent"
	}
}

type uploadSnippet struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Tags                 []string `json:"tags,omitempty"`
	CategoryID           string   `json:"categoryId"`
	DefaultLanguage      string   `json:"defaultLanguage,omitempty"`
	DefaultAudioLanguage string   `json:"defaultAudioLanguage,omitempty"`
}

type uploadStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type uploadResource struct {
	Snippet uploadSnippet `json:"snippet"`
	Status  uploadStatus  `json:"status"`
}

func buildResource(meta vo.PublishMetadata) uploadResource {
	return uploadResource{
		Snippet: uploadSnippet{
			Title:                vo.Truncate(meta.Title, vo.MaxTitleLength),
			Description:          vo.Truncate(meta.Description, vo.MaxDescriptionLength),
			Tags:                 vo.NormalizeTags(meta.Tags),
			CategoryID:           meta.CategoryID,
			DefaultLanguage:      meta.Language,
			DefaultAudioLanguage: meta.Language,
		},
		Status: uploadStatus{PrivacyStatus: meta.PrivacyStatus},
	}
}

// Upload 单次 multipart/related 上传，不重试
func (c *Client) Upload(ctx context.Context, token, videoPath string, meta vo.PublishMetadata) (vo.PublishResult, error) {
	const op = "upload video"
	f, err := os.Open(videoPath)
	if err != nil {
		return vo.PublishResult{}, entity.NewFileSystemError(op, err)
	}
	defer f.Close()

	resource, err := json.Marshal(buildResource(meta))
	if err != nil {
		return vo.PublishResult{}, entity.NewValidationError(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, resource, f))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, pr)
	if err != nil {
		return vo.PublishResult{}, entity.NewPermanentError(op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := c.http.Do(req)
	if err != nil {
		return vo.PublishResult{}, entity.NewTransientError(op, fmt.Errorf("upload connection failed: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if err := statusError(op, resp.StatusCode, body); err != nil {
		return vo.PublishResult{}, err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return vo.PublishResult{}, entity.Errorf(entity.KindPermanentExternal, op, "upload response has no video id: %s", truncateBody(body))
	}
	return vo.PublishResult{ExternalID: created.ID, ExternalURL: c.cfg.WatchURLPrefix + created.ID}, nil
}

func writeMultipart(mw *multipart.Writer, resource []byte, video io.Reader) error {
	meta, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return err
	}
	if _, err := meta.Write(resource); err != nil {
		return err
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"video/mp4"}})
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, video); err != nil {
		return err
	}
	return mw.Close()
}

// statusError 401 需要重新授权，5xx 可重试。408 属于超时、429 属于限流，同样可重试；其余 4xx 不可重试
func statusError(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return entity.Errorf(entity.KindAuthRequired, op, "upload rejected credentials (401)")
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return entity.Errorf(entity.KindTransientExternal, op, "upload failed with status %d: %s", status, truncateBody(body)).
			WithCategory(vo.ErrorCategoryNetwork)
	default:
		return entity.Errorf(entity.KindPermanentExternal, op, "upload failed with status %d: %s", status, truncateBody(body))
	}
}
