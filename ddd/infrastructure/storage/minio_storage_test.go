package storage

import "testing"

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"published/v1/v1.mp4":       "video/mp4",
		"published/v1/v1_thumb.JPG": "image/jpeg",
		"audio.mp3":                 "audio/mpeg",
		"notes":                     "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
