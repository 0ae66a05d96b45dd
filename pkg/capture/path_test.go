package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFramePath(t *testing.T) {
	tests := []struct {
		template string
		frame    int
		ext      string
		want     string
	}{
		{"clip", 3, ".png", "clip0003.png"},
		{"shot_##", 5, ".png", "shot_05.png"},
		{"a_###_b", 12, ".tif", "a_012_b.tif"},
		{"x_#_y_##", 7, ".png", "x_#_y_07.png"},
		{"frame####.png", 42, ".png", "frame0042.png"},
		{"wide_##", 1234, "", "wide_1234"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			if got := FramePath(tt.template, tt.frame, tt.ext); got != tt.want {
				t.Errorf("FramePath(%q, %d, %q) = %q, want %q", tt.template, tt.frame, tt.ext, got, tt.want)
			}
		})
	}
}

func TestResolveOutputPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "renders")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		frame     int
		animation bool
		want      string
	}{
		{"plain file", filepath.Join(dir, "quilt"), 1, false, filepath.Join(dir, "quilt.png")},
		{"extension kept", filepath.Join(dir, "quilt.png"), 1, false, filepath.Join(dir, "quilt.png")},
		{"trailing separator", dir + string(filepath.Separator), 7, false, filepath.Join(dir, "0007.png")},
		{"existing directory", sub, 3, false, filepath.Join(sub, "0003.png")},
		{"animation template", filepath.Join(dir, "shot_###"), 12, true, filepath.Join(dir, "shot_012.png")},
		{"animation appends frame", filepath.Join(dir, "shot_"), 12, true, filepath.Join(dir, "shot_0012.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOutputPath(tt.path, ".png", tt.frame, tt.animation)
			if err != nil {
				t.Fatalf("ResolveOutputPath failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveOutputPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	if _, err := ResolveOutputPath("", ".png", 1, false); !errors.Is(err, ErrPathResolution) {
		t.Errorf("Expected ErrPathResolution for an empty path, got %v", err)
	}
}

func TestViewPath(t *testing.T) {
	got := ViewPath(filepath.Join("out", "quilt_0001.png"), 7)
	want := filepath.Join("out", "quilt_0001_view_07.png")
	if got != want {
		t.Errorf("ViewPath = %q, want %q", got, want)
	}

	if got := ViewPath("quilt", 44); got != "quilt_view_44" {
		t.Errorf("ViewPath without extension = %q", got)
	}
}
