// Package ffmpeg locates and runs the ffmpeg and ffprobe executables and
// probes what the local build supports.
package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Environment variables that override discovery.
const (
	EnvFFmpegPath  = "FFMPEG_PATH"
	EnvFFprobePath = "FFPROBE_PATH"
)

var (
	// ErrNotFound is returned when the executable cannot be located.
	ErrNotFound = errors.New("ffmpeg: executable not found")
)

func execName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func commonLocations(name string) []string {
	name = execName(name)
	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(`C:\ffmpeg\bin`, name),
			filepath.Join(`C:\Program Files\ffmpeg\bin`, name),
			filepath.Join(`C:\Program Files (x86)\ffmpeg\bin`, name),
		}
	case "darwin":
		return []string{
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
			"/usr/bin/" + name,
		}
	default:
		return []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
			"/snap/bin/" + name,
		}
	}
}

// Locate finds ffmpeg.
// Priority: 1) custom, 2) FFMPEG_PATH, 3) PATH, 4) common locations.
func Locate(custom string) (string, error) {
	return locate("ffmpeg", custom, EnvFFmpegPath, "")
}

// LocateProbe finds ffprobe. Besides FFPROBE_PATH and PATH it looks next to
// the ffmpeg executable found by Locate(custom).
func LocateProbe(custom string) (string, error) {
	sibling := ""
	if ff, err := Locate(custom); err == nil {
		sibling = filepath.Join(filepath.Dir(ff), execName("ffprobe"))
	}
	return locate("ffprobe", "", EnvFFprobePath, sibling)
}

func locate(name, custom, env, sibling string) (string, error) {
	if custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: custom path %s", ErrNotFound, custom)
	}

	if p := os.Getenv(env); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s=%s", ErrNotFound, env, p)
	}

	if sibling != "" {
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}

	if p, err := exec.LookPath(execName(name)); err == nil {
		return p, nil
	}

	for _, p := range commonLocations(name) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}
