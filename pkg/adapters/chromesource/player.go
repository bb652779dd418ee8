package chromesource

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// bindingName is the runtime binding the page calls with frame payloads.
const bindingName = "vidloopFrame"

// playerTemplate hosts the video and the helpers driven over CDP.
var playerTemplate = template.Must(template.New("player").Parse(`<!doctype html>
<html><body style="margin:0;background:#000">
<video id="v" src="{{.Src}}" muted playsinline preload="auto"></video>
<canvas id="c" width="{{.Width}}" height="{{.Height}}"></canvas>
<script>
window.vidloop = (function () {
  const v = document.getElementById('v');
  const c = document.getElementById('c');
  const g = c.getContext('2d');
  let streaming = false;

  const ready = new Promise((resolve) => {
    if (v.readyState >= 2) { resolve(); return; }
    v.addEventListener('loadeddata', () => resolve(), { once: true });
    v.addEventListener('error', () => resolve(), { once: true });
  });

  function snapshot(type) {
    g.drawImage(v, 0, 0, c.width, c.height);
    return c.toDataURL(type, 0.9);
  }

  return {
    info: () => ready.then(() => ({
      duration: isFinite(v.duration) ? v.duration : 0,
      width: v.videoWidth,
      height: v.videoHeight,
      error: v.error ? String(v.error.code) : ''
    })),
    seek: (t) => new Promise((resolve) => {
      v.addEventListener('seeked', () => resolve(v.currentTime), { once: true });
      v.currentTime = t;
    }),
    frame: () => snapshot('image/png'),
    play: () => {
      v.currentTime = 0;
      streaming = true;
      const cb = (now, meta) => {
        if (!streaming) return;
        window.{{.Binding}}(JSON.stringify({ t: meta.mediaTime, data: snapshot('image/jpeg') }));
        v.requestVideoFrameCallback(cb);
      };
      v.requestVideoFrameCallback(cb);
      v.onended = () => { streaming = false; window.{{.Binding}}('{"end":true}'); };
      return v.play().then(() => '', (e) => e.name || 'Error');
    },
    pause: () => { streaming = false; v.pause(); }
  };
})();
</script>
</body></html>
`))

// PlayerHTML renders the page hosting the video at path.
func PlayerHTML(path string, width, height int) (string, error) {
	var buf bytes.Buffer
	err := playerTemplate.Execute(&buf, struct {
		Src           template.URL
		Width, Height int
		Binding       template.JS
	}{
		Src:     template.URL(FileURL(path)),
		Width:   width,
		Height:  height,
		Binding: template.JS(bindingName),
	})
	return buf.String(), err
}

// FileURL converts a local path into a file:// URL.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return (&url.URL{Scheme: "file", Path: abs}).String()
}

// framePayload is what the page sends through the binding.
type framePayload struct {
	T    float64 `json:"t"`
	Data string  `json:"data"`
	End  bool    `json:"end"`
}

func (p framePayload) mediaTime() time.Duration {
	return time.Duration(p.T * float64(time.Second))
}

var errNotDataURL = errors.New("chromesource: not a base64 data URL")

// DecodeDataURL decodes a base64 image data URL.
func DecodeDataURL(s string) (image.Image, error) {
	_, data, ok := strings.Cut(s, ";base64,")
	if !ok || !strings.HasPrefix(s, "data:image/") {
		return nil, errNotDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}
