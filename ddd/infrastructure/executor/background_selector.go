package executor

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
)

const (
	PolicyFirstMatch = "first_match"
	PolicyHash       = "hash"
)

var backgroundExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// DirectorySelector 从目录中选择背景视频；候选按文件名排序，保证结果可复现
type DirectorySelector struct {
	dir    string
	policy string
}

func NewDirectorySelector(dir, policy string) *DirectorySelector {
	if policy == "" {
		policy = PolicyFirstMatch
	}
	return &DirectorySelector{dir: dir, policy: policy}
}

var _ port.BackgroundSelector = (*DirectorySelector)(nil)

func (s *DirectorySelector) Select(_ context.Context, key string) (string, error) {
	const op = "select background"
	candidates, err := s.candidates()
	if err != nil {
		return "", entity.NewFileSystemError(op, err)
	}
	if len(candidates) == 0 {
		return "", entity.Errorf(entity.KindFileSystem, op, "no background videos available in %s", s.dir)
	}

	switch s.policy {
	case PolicyHash:
		h := fnv.New32a()
		_, _ = h.Write([]byte(key))
		return candidates[h.Sum32()%uint32(len(candidates))], nil
	default:
		return candidates[0], nil
	}
}

func (s *DirectorySelector) candidates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if backgroundExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
