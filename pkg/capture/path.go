package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathResolution is returned when no output path can be derived.
var ErrPathResolution = errors.New("cannot resolve output path")

// FramePath expands a frame path template. The last run of '#' is
// replaced by the zero-padded frame number; without one, a 4 digit frame
// number is appended. ext is appended unless the path already ends in it.
func FramePath(template string, frame int, ext string) string {
	end := strings.LastIndexByte(template, '#')
	var path string
	if end < 0 {
		path = fmt.Sprintf("%s%04d", template, frame)
	} else {
		start := end
		for start > 0 && template[start-1] == '#' {
			start--
		}
		width := end - start + 1
		path = fmt.Sprintf("%s%0*d%s", template[:start], width, frame, template[end+1:])
	}
	return withExtension(path, ext)
}

func withExtension(path, ext string) string {
	if ext == "" || strings.EqualFold(filepath.Ext(path), ext) {
		return path
	}
	return path + ext
}

// ResolveOutputPath returns the quilt path for a frame. Animations always
// use the frame path template. A single frame written to a directory gets
// the frame number as its file name; otherwise the extension is added to
// the user's path.
func ResolveOutputPath(path, ext string, frame int, animation bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty output path", ErrPathResolution)
	}
	if animation {
		return FramePath(path, frame, ext), nil
	}

	if filepath.Base(path+ext) == ext {
		return FramePath(path+"####", frame, ext), nil
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return FramePath(filepath.Join(path, "####"), frame, ext), nil
	}
	return withExtension(path, ext), nil
}

// ViewPath returns the path of the transient image of one view.
func ViewPath(quiltPath string, view int) string {
	ext := filepath.Ext(quiltPath)
	return fmt.Sprintf("%s_view_%02d%s", strings.TrimSuffix(quiltPath, ext), view, ext)
}
