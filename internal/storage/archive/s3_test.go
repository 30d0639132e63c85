package archive

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/newthinker/prism/internal/core"
)

var _ Storage = (*S3Storage)(nil)

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.json", "file.json"},
		{"archive", "file.json", "archive/file.json"},
		{"/archive/", "/results/a.json", "archive/results/a.json"},
	}

	for _, tt := range tests {
		s, err := NewS3(S3Config{Bucket: "b", Prefix: tt.prefix})
		if err != nil {
			t.Fatalf("NewS3: %v", err)
		}
		if got := s.key(tt.path); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestS3Storage_Relative(t *testing.T) {
	s, _ := NewS3(S3Config{Bucket: "b", Prefix: "archive"})
	if got := s.relative("archive/results/a.json"); got != "results/a.json" {
		t.Errorf("relative = %q", got)
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{})
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("get: %w", &types.NoSuchKey{})) {
		t.Error("NoSuchKey should be not found")
	}
	if !isNotFound(&types.NotFound{}) {
		t.Error("NotFound should be not found")
	}
	if isNotFound(errors.New("access denied")) {
		t.Error("other errors are not not-found")
	}
}
