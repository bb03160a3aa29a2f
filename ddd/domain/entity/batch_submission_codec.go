package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sermon-publisher/ddd/domain/vo"
)

// 缓存哈希字段，计数字段由存储层原子增量修改
const (
	BatchFieldID        = "id"
	BatchFieldSources   = "sources"
	BatchFieldInvalid   = "invalid_sources"
	BatchFieldStatus    = "status"
	BatchFieldTotal     = "total"
	BatchFieldProcessed = "processed"
	BatchFieldSucceeded = "succeeded"
	BatchFieldFailed    = "failed"
	BatchFieldCreatedAt = "created_at"
	BatchFieldUpdatedAt = "updated_at"
)

// ToHash 序列化为扁平的字符串哈希
func (b *BatchSubmission) ToHash() (map[string]interface{}, error) {
	sources, err := json.Marshal(b.Sources)
	if err != nil {
		return nil, err
	}
	invalid, err := json.Marshal(b.InvalidSources)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		BatchFieldID:        b.ID,
		BatchFieldSources:   string(sources),
		BatchFieldInvalid:   string(invalid),
		BatchFieldStatus:    string(b.Status),
		BatchFieldTotal:     b.TotalCount,
		BatchFieldProcessed: b.ProcessedCount,
		BatchFieldSucceeded: b.SucceededCount,
		BatchFieldFailed:    b.FailedCount,
		BatchFieldCreatedAt: b.CreatedAt.UTC().Format(time.RFC3339Nano),
		BatchFieldUpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// BatchSubmissionFromHash 反序列化，缺字段或格式错误返回 Concurrency 错误（读到了不完整的对象）
func BatchSubmissionFromHash(h map[string]string) (*BatchSubmission, error) {
	if len(h) == 0 {
		return nil, NewNotFoundError("decode batch", fmt.Errorf("empty hash"))
	}
	b := &BatchSubmission{ID: h[BatchFieldID], Status: vo.BatchStatus(h[BatchFieldStatus])}
	if b.ID == "" {
		return nil, NewConcurrencyError("decode batch", fmt.Errorf("missing %s", BatchFieldID))
	}
	if err := json.Unmarshal([]byte(h[BatchFieldSources]), &b.Sources); err != nil {
		return nil, NewConcurrencyError("decode batch", fmt.Errorf("sources: %w", err))
	}
	if raw := h[BatchFieldInvalid]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &b.InvalidSources); err != nil {
			return nil, NewConcurrencyError("decode batch", fmt.Errorf("invalid_sources: %w", err))
		}
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{BatchFieldTotal, &b.TotalCount},
		{BatchFieldProcessed, &b.ProcessedCount},
		{BatchFieldSucceeded, &b.SucceededCount},
		{BatchFieldFailed, &b.FailedCount},
	}
	for _, f := range ints {
		raw, ok := h[f.field]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, NewConcurrencyError("decode batch", fmt.Errorf("%s: %w", f.field, err))
		}
		*f.dst = n
	}

	var err error
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, h[BatchFieldCreatedAt]); err != nil {
		return nil, NewConcurrencyError("decode batch", fmt.Errorf("created_at: %w", err))
	}
	if raw := h[BatchFieldUpdatedAt]; raw != "" {
		if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, NewConcurrencyError("decode batch", fmt.Errorf("updated_at: %w", err))
		}
	} else {
		b.UpdatedAt = b.CreatedAt
	}
	if b.Status == "" {
		b.Status = StatusForCounts(b.TotalCount, b.ProcessedCount)
	}
	return b, nil
}
