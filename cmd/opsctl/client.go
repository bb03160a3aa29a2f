package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sermon-publisher/ddd/application/dto"
	"sermon-publisher/pkg/errno"
)

type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type apiResponse struct {
	Code      int               `json:"code"`
	Message   string            `json:"message"`
	Data      dto.BulkResultDto `json:"data"`
	RequestID string            `json:"request_id"`
}

// apiError 服务端返回的业务错误
type apiError struct {
	Status    int
	Code      int
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("server returned %d (code=%d): %s [request_id=%s]", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("server returned %d (code=%d): %s", e.Status, e.Code, e.Message)
}

// bulk POST /admin/videos/bulk/{op}，body 为 nil 时发送空请求体
func (c *adminClient) bulk(ctx context.Context, op string, body interface{}) (*dto.BulkResultDto, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/videos/bulk/"+op, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d): %w", op, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Code != errno.OK.Code {
		return nil, &apiError{Status: resp.StatusCode, Code: decoded.Code, Message: decoded.Message, RequestID: decoded.RequestID}
	}
	return &decoded.Data, nil
}
