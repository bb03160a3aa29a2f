package vo

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func testSermon() SermonContent {
	return SermonContent{
		SourceURL:      "https://church.example/sermons/1",
		Title:          "은혜의 복음",
		Scripture:      "요한복음 3:16, 로마서 8:28",
		Pastor:         "김목사",
		Church:         "진리교회!",
		Interpretation: "하나님이 세상을 이처럼 사랑하사",
	}
}

func TestBuildDescription(t *testing.T) {
	desc := BuildDescription(testSermon())
	for _, fragment := range []string{
		"📖 성경: 요한복음 3:16, 로마서 8:28",
		"⛪ 교회: 진리교회!",
		"👨‍💼 목사: 김목사",
		"#Shorts #설교 #기독교 #성경 #한국어",
		"원본 출처: https://church.example/sermons/1",
	} {
		if !strings.Contains(desc, fragment) {
			t.Fatalf("description missing %q:\n%s", fragment, desc)
		}
	}
}

func TestBuildDescriptionSkipsPlaceholderPastorAndTruncates(t *testing.T) {
	s := testSermon()
	s.Pastor = "YouTube 콘텐츠"
	s.Interpretation = strings.Repeat("가", 6000)
	desc := BuildDescription(s)
	if strings.Contains(desc, "목사:") {
		t.Fatal("placeholder pastor should be skipped")
	}
	if n := utf8.RuneCountInString(desc); n > MaxDescriptionLength {
		t.Fatalf("description too long: %d", n)
	}
}

func TestBuildTags(t *testing.T) {
	tags := BuildTags(testSermon())
	if len(tags) > MaxTags {
		t.Fatalf("too many tags: %v", tags)
	}
	// "3:16" 清洗后为 "316"，长度 3 也会入选；第 11 个标签被截掉
	want := []string{"Shorts", "설교", "기독교", "성경", "한국어", "자동화", "진리교회", "요한복음", "316", "로마서"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}
}

func TestNormalizeTagsDedupesAndCaps(t *testing.T) {
	in := []string{"a", "b", "a", " ", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
	out := NormalizeTags(in)
	if len(out) != MaxTags {
		t.Fatalf("expected %d tags, got %v", MaxTags, out)
	}
	if out[0] != "a" || out[1] != "b" || out[2] != "c" {
		t.Fatalf("order not preserved: %v", out)
	}
}

func TestBuildPublishMetadataDefaults(t *testing.T) {
	defaults := PublishDefaults{Title: "기본 제목", CategoryID: "22", PrivacyStatus: "public", Language: "ko"}
	meta := BuildPublishMetadata(testSermon(), "", defaults)
	if meta.Title != "기본 제목" || meta.CategoryID != "22" || meta.PrivacyStatus != "public" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	long := BuildPublishMetadata(testSermon(), strings.Repeat("t", 150), defaults)
	if n := utf8.RuneCountInString(long.Title); n != MaxTitleLength {
		t.Fatalf("title length = %d", n)
	}
}
