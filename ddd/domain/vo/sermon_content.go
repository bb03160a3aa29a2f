package vo

import (
	"regexp"
	"strings"
)

// SermonContent 生成视频所需的讲道内容快照
type SermonContent struct {
	SourceURL      string `json:"source_url"`
	Title          string `json:"title"`
	Scripture      string `json:"scripture,omitempty"`
	Pastor         string `json:"pastor,omitempty"`
	Church         string `json:"church,omitempty"`
	Interpretation string `json:"interpretation,omitempty"`
	ActionPoints   string `json:"action_points,omitempty"`
}

const (
	MaxScriptLength         = 5000
	maxInterpretationLength = 2000
	maxActionPointsLength   = 500
	defaultActionPoints     = "1. 말씀 묵상하기\n2. 기도로 적용하기\n3. 실천하며 살아가기"
)

var (
	actionIndicators  = []string{"실천", "적용", "행동", "실행", "방법", "단계"}
	sentenceSeparator = regexp.MustCompile(`[.!?]`)
)

// NewSermonContent 从抽取的页面内容构建快照，正文拆成释义和实践要点
func NewSermonContent(sourceURL, title, scripture, pastor, church, body string) SermonContent {
	body = NormalizeText(body)
	return SermonContent{
		SourceURL:      sourceURL,
		Title:          Truncate(NormalizeText(title), 255),
		Scripture:      Truncate(NormalizeText(scripture), 1000),
		Pastor:         Truncate(NormalizeText(pastor), 100),
		Church:         Truncate(NormalizeText(church), 100),
		Interpretation: Truncate(body, maxInterpretationLength),
		ActionPoints:   ExtractActionPoints(body),
	}
}

// ExtractActionPoints 取前三个包含实践类关键词的句子，找不到时使用默认要点
func ExtractActionPoints(content string) string {
	var picked []string
	for _, sentence := range sentenceSeparator.Split(content, -1) {
		for _, indicator := range actionIndicators {
			if strings.Contains(sentence, indicator) {
				picked = append(picked, strings.TrimSpace(sentence))
				break
			}
		}
		if len(picked) == 3 {
			break
		}
	}
	if len(picked) == 0 {
		return defaultActionPoints
	}
	return Truncate(strings.Join(picked, ". "), maxActionPointsLength)
}

// BuildScript 生成朗读脚本
func (s SermonContent) BuildScript() string {
	var parts []string
	if s.Title != "" {
		parts = append(parts, "제목: "+s.Title)
	}
	if s.Scripture != "" {
		parts = append(parts, "성경: "+s.Scripture)
	}
	if s.Pastor != "" {
		parts = append(parts, "목사: "+s.Pastor)
	}
	parts = append(parts, "")
	if s.Interpretation != "" {
		parts = append(parts, s.Interpretation)
	}
	parts = append(parts, "")
	if s.ActionPoints != "" {
		parts = append(parts, "실천사항:", s.ActionPoints)
	}
	return Truncate(strings.Join(parts, "\n"), MaxScriptLength)
}
