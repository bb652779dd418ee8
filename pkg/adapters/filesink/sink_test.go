package filesink

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/ports"
)

// testBaseDir is a platform-independent base directory for tests
var testBaseDir = filepath.Join("debug")

func TestSink_Enabled(t *testing.T) {
	sink := New(testBaseDir, mocks.NewFileSystem(), &mocks.Renderer{})
	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 2; i++ {
		if err := sink.SaveFrame(i, img); err != nil {
			t.Fatalf("SaveFrame failed: %v", err)
		}
	}

	for _, name := range []string{"frame-0000.png", "frame-0001.png"} {
		if _, ok := fs.GetFile(filepath.Join(testBaseDir, "frames", name)); !ok {
			t.Errorf("expected %s to be saved", name)
		}
	}
	if dirs := fs.Dirs(); len(dirs) != 1 || dirs[0] != filepath.Join(testBaseDir, "frames") {
		t.Errorf("expected frames directory to be created once, got %v", dirs)
	}
}

func TestSink_SaveFrame_EncodeError(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			return nil, errors.New("png")
		},
	}
	sink := New(testBaseDir, fs, renderer)

	if err := sink.SaveFrame(0, image.NewRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Fatal("expected error")
	}
	if len(fs.GetAllFiles()) != 0 {
		t.Error("nothing should be written on encode failure")
	}
}

func TestSink_SaveFrame_MkdirErrorSticks(t *testing.T) {
	fs := mocks.NewFileSystem()
	calls := 0
	fs.MkdirAllFunc = func(path string) error {
		calls++
		return errors.New("read-only")
	}
	sink := New(testBaseDir, fs, &mocks.Renderer{})

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	for i := 0; i < 3; i++ {
		if err := sink.SaveFrame(i, img); err == nil {
			t.Fatalf("frame %d: expected error", i)
		}
	}
	if calls != 1 {
		t.Errorf("expected a single mkdir attempt, got %d", calls)
	}
}

func TestSink_SaveJSON(t *testing.T) {
	tests := []struct {
		name string
		save func(*Sink, []byte) error
		file string
	}{
		{"report", (*Sink).SaveReportJSON, "report.json"},
		{"history", (*Sink).SaveHistoryJSON, "history.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := mocks.NewFileSystem()
			sink := New(testBaseDir, fs, &mocks.Renderer{})

			data := []byte(`{"test": true}`)
			if err := tt.save(sink, data); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			saved, ok := fs.GetFile(filepath.Join(testBaseDir, tt.file))
			if !ok || string(saved) != string(data) {
				t.Errorf("expected %q at %s, got %q", data, tt.file, saved)
			}
		})
	}
}

var _ ports.DebugSink = (*Sink)(nil)
