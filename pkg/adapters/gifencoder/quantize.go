package gifencoder

import (
	"image"
	"image/color"
	"sort"
)

// maxSamples bounds the pixels fed to the median cut per frame.
const maxSamples = 64 << 10

type box struct {
	pixels []color.RGBA
}

// channel returns the widest channel of the box and its range.
func (b box) channel() (int, int) {
	lo := [3]uint8{255, 255, 255}
	var hi [3]uint8
	for _, p := range b.pixels {
		for i, v := range [3]uint8{p.R, p.G, p.B} {
			if v < lo[i] {
				lo[i] = v
			}
			if v > hi[i] {
				hi[i] = v
			}
		}
	}
	best, width := 0, -1
	for i := range lo {
		if w := int(hi[i]) - int(lo[i]); w > width {
			best, width = i, w
		}
	}
	return best, width
}

func (b box) mean() color.RGBA {
	var r, g, bl int
	for _, p := range b.pixels {
		r += int(p.R)
		g += int(p.G)
		bl += int(p.B)
	}
	n := len(b.pixels)
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 255}
}

// MedianCut builds a palette of at most size colours for img.
func MedianCut(img image.Image, size int) color.Palette {
	palette, _ := medianCut(img, size, nil)
	return palette
}

// medianCut polls stop once per sampled row and once per split. It returns
// false when stop reported true.
func medianCut(img image.Image, size int, stop func() bool) (color.Palette, bool) {
	if size < 2 {
		size = 2
	}
	if stop == nil {
		stop = func() bool { return false }
	}
	pixels, ok := sample(img, stop)
	if !ok {
		return nil, false
	}
	if len(pixels) == 0 {
		return color.Palette{color.Black, color.White}, true
	}

	boxes := []box{{pixels: pixels}}
	for len(boxes) < size {
		if stop() {
			return nil, false
		}
		// Split the box with the widest channel range.
		idx, ch, width := -1, 0, 0
		for i, b := range boxes {
			if len(b.pixels) < 2 {
				continue
			}
			if c, w := b.channel(); w > width {
				idx, ch, width = i, c, w
			}
		}
		if idx < 0 {
			break
		}
		px := boxes[idx].pixels
		sort.Slice(px, func(i, j int) bool {
			return component(px[i], ch) < component(px[j], ch)
		})
		mid := len(px) / 2
		boxes[idx] = box{pixels: px[:mid]}
		boxes = append(boxes, box{pixels: px[mid:]})
	}

	palette := make(color.Palette, 0, len(boxes))
	for _, b := range boxes {
		palette = append(palette, b.mean())
	}
	return palette, true
}

func component(c color.RGBA, ch int) uint8 {
	switch ch {
	case 0:
		return c.R
	case 1:
		return c.G
	}
	return c.B
}

func sample(img image.Image, stop func() bool) ([]color.RGBA, bool) {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	step := 1
	for total/(step*step) > maxSamples {
		step++
	}
	pixels := make([]color.RGBA, 0, total/(step*step)+1)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		if stop() {
			return nil, false
		}
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			pixels = append(pixels, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255})
		}
	}
	return pixels, true
}
