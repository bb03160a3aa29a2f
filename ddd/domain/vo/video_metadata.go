package vo

import (
	"fmt"
	"strings"
)

// 允许批量修改的元数据字段
const (
	MetadataTitle       = "title"
	MetadataDescription = "description"
	MetadataTags        = "tags"
	MetadataDuration    = "duration"
	MetadataResolution  = "resolution"
)

var allowedMetadataFields = map[string]struct{}{
	MetadataTitle:       {},
	MetadataDescription: {},
	MetadataTags:        {},
	MetadataDuration:    {},
	MetadataResolution:  {},
}

// VideoMetadata 视频展示元数据
type VideoMetadata struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Duration    float64  `json:"duration,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
}

// FilterMetadataFields 只保留白名单字段
func FilterMetadataFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if _, ok := allowedMetadataFields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Apply 把白名单字段写入元数据，类型不符时返回错误且不修改
func (m VideoMetadata) Apply(fields map[string]interface{}) (VideoMetadata, error) {
	next := m
	next.Tags = append([]string(nil), m.Tags...)
	for k, v := range FilterMetadataFields(fields) {
		switch k {
		case MetadataTitle:
			s, ok := v.(string)
			if !ok {
				return m, fmt.Errorf("invalid title type %T", v)
			}
			next.Title = Truncate(strings.TrimSpace(s), MaxTitleLength)
		case MetadataDescription:
			s, ok := v.(string)
			if !ok {
				return m, fmt.Errorf("invalid description type %T", v)
			}
			next.Description = Truncate(s, MaxDescriptionLength)
		case MetadataTags:
			tags, err := toStringSlice(v)
			if err != nil {
				return m, err
			}
			next.Tags = NormalizeTags(tags)
		case MetadataDuration:
			d, err := toFloat(v)
			if err != nil {
				return m, err
			}
			next.Duration = d
		case MetadataResolution:
			s, ok := v.(string)
			if !ok {
				return m, fmt.Errorf("invalid resolution type %T", v)
			}
			next.Resolution = s
		}
	}
	return next, nil
}

func toStringSlice(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid tag type %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return strings.Split(t, ","), nil
	default:
		return nil, fmt.Errorf("invalid tags type %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
}
