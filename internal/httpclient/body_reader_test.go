package httpclient

import (
	"io"
	"testing"

	"github.com/torosent/seckillprobe/internal/config"
)

func TestNewBodySource(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewBodySource(nil)
		if err == nil {
			t.Error("NewBodySource(nil) error = nil, want error")
		}
	})

	t.Run("inline body", func(t *testing.T) {
		content := `{"userId":42}`
		cfg := &config.Config{Body: content}
		source, err := NewBodySource(cfg)
		if err != nil {
			t.Fatalf("NewBodySource(inline) error = %v", err)
		}

		if length, ok := source.ContentLength(); !ok || length != int64(len(content)) {
			t.Errorf("ContentLength() = %d, %v; want %d, true", length, ok, len(content))
		}

		for i := 0; i < 2; i++ {
			rc, err := source.NewReader()
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			got, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != content {
				t.Errorf("ReadAll() #%d = %q, want %q", i+1, string(got), content)
			}
		}
	})

	t.Run("empty body", func(t *testing.T) {
		source, err := NewBodySource(&config.Config{})
		if err != nil {
			t.Fatalf("NewBodySource(empty) error = %v", err)
		}
		if length, ok := source.ContentLength(); !ok || length != 0 {
			t.Errorf("ContentLength() = %d, %v; want 0, true", length, ok)
		}
		rc, err := source.NewReader()
		if err != nil {
			t.Fatalf("NewReader() error = %v", err)
		}
		got, _ := io.ReadAll(rc)
		if len(got) != 0 {
			t.Errorf("ReadAll() = %q, want empty", string(got))
		}
	})
}
