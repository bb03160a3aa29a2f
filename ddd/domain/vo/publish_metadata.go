package vo

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 5000
	MaxTags              = 10
	maxContentInDesc     = 1000
	placeholderPastor    = "YouTube 콘텐츠"
)

var (
	baseTags          = []string{"Shorts", "설교", "기독교", "성경", "한국어", "자동화"}
	churchTagStrip    = regexp.MustCompile(`[^A-Za-z0-9_\s가-힣]`)
	scriptureSplit    = regexp.MustCompile(`[\s,]+`)
	scriptureTagStrip = regexp.MustCompile(`[^A-Za-z0-9_가-힣]`)
)

// PublishMetadata 上传到视频平台的元数据
type PublishMetadata struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	CategoryID    string   `json:"category_id"`
	PrivacyStatus string   `json:"privacy_status"`
	Language      string   `json:"language"`
}

// PublishDefaults 平台侧固定参数
type PublishDefaults struct {
	Title         string
	CategoryID    string
	PrivacyStatus string
	Language      string
}

// BuildPublishMetadata 根据讲道内容构造标题、描述和标签，title 为空时使用默认标题
func BuildPublishMetadata(sermon SermonContent, title string, defaults PublishDefaults) PublishMetadata {
	if strings.TrimSpace(title) == "" {
		title = defaults.Title
	}
	return PublishMetadata{
		Title:         Truncate(title, MaxTitleLength),
		Description:   BuildDescription(sermon),
		Tags:          BuildTags(sermon),
		CategoryID:    defaults.CategoryID,
		PrivacyStatus: defaults.PrivacyStatus,
		Language:      defaults.Language,
	}
}

// BuildDescription 描述：经文、正文摘要、教会、牧师、固定标签行和来源
func BuildDescription(sermon SermonContent) string {
	var parts []string
	if sermon.Scripture != "" {
		parts = append(parts, "📖 성경: "+sermon.Scripture, "")
	}
	if sermon.Interpretation != "" {
		parts = append(parts, Truncate(sermon.Interpretation, maxContentInDesc), "")
	}
	if sermon.Church != "" {
		parts = append(parts, "⛪ 교회: "+sermon.Church)
	}
	if sermon.Pastor != "" && sermon.Pastor != placeholderPastor {
		parts = append(parts, "👨‍💼 목사: "+sermon.Pastor)
	}
	parts = append(parts,
		"",
		"#Shorts #설교 #기독교 #성경 #한국어",
		"",
		"🤖 이 영상은 Words of Truth 자동화 시스템으로 생성되었습니다.",
	)
	if sermon.SourceURL != "" {
		parts = append(parts, "원본 출처: "+sermon.SourceURL)
	}
	return Truncate(strings.Join(parts, "\n"), MaxDescriptionLength)
}

// BuildTags 基础标签 + 教会名 + 经文片段，去重后最多 10 个
func BuildTags(sermon SermonContent) []string {
	tags := append([]string(nil), baseTags...)
	if sermon.Church != "" {
		if church := strings.TrimSpace(churchTagStrip.ReplaceAllString(sermon.Church, "")); church != "" {
			tags = append(tags, church)
		}
	}
	if sermon.Scripture != "" {
		for _, part := range scriptureSplit.Split(sermon.Scripture, -1) {
			clean := scriptureTagStrip.ReplaceAllString(part, "")
			if n := utf8.RuneCountInString(clean); n > 2 && n < 20 {
				tags = append(tags, clean)
			}
		}
	}
	return NormalizeTags(tags)
}

// NormalizeTags 去空、去重（保持顺序）并截取前 10 个
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
