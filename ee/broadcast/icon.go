package broadcast

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/colornames"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// IconSize is the edge length, in pixels, that icons are scaled down to.
const IconSize = 128

// Icon is a PNG encoded image with a stable file name.
type Icon struct {
	name string
	data []byte
}

var (
	defaultIconOnce sync.Once
	defaultIcon     Icon
)

// DefaultIcon returns the built-in notification icon.
func DefaultIcon() Icon {
	defaultIconOnce.Do(func() {
		var buf bytes.Buffer
		img := resize.Resize(IconSize, IconSize, renderDefaultIcon(), resize.Lanczos3)
		if err := png.Encode(&buf, img); err != nil {
			// Encoding an in-memory NRGBA image cannot fail short of OOM.
			panic(fmt.Sprintf("encoding default icon: %v", err))
		}
		defaultIcon = Icon{name: "desktop-notification.png", data: buf.Bytes()}
	})

	return defaultIcon
}

// IconFromFile loads an image from disk. Any format registered with the
// image package is accepted; the result is re-encoded as PNG and scaled
// down to IconSize if larger.
func IconFromFile(path string) (Icon, error) {
	f, err := os.Open(path)
	if err != nil {
		return Icon{}, fmt.Errorf("opening icon: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Icon{}, fmt.Errorf("decoding icon %s: %w", path, err)
	}

	if b := img.Bounds(); b.Dx() > IconSize || b.Dy() > IconSize {
		img = resize.Thumbnail(IconSize, IconSize, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Icon{}, fmt.Errorf("encoding icon: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Icon{name: base + ".png", data: buf.Bytes()}, nil
}

func (i Icon) Name() string { return i.name }

func (i Icon) Data() []byte { return i.data }

func (i Icon) IsValid() bool { return len(i.data) > 0 }

// SaveTo writes the icon into dir and returns its path. Backends that can
// only reference icons by path use this. An existing file with identical
// content is reused.
func (i Icon) SaveTo(dir string) (string, error) {
	if !i.IsValid() {
		return "", fmt.Errorf("icon %q has no data", i.name)
	}

	sum := sha256.Sum256(i.data)
	name := fmt.Sprintf("%s-%s%s",
		strings.TrimSuffix(i.name, filepath.Ext(i.name)),
		hex.EncodeToString(sum[:4]),
		filepath.Ext(i.name),
	)
	iconPath := filepath.Join(dir, name)

	if existing, err := os.ReadFile(iconPath); err == nil && bytes.Equal(existing, i.data) {
		return iconPath, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating icon directory: %w", err)
	}

	if err := os.WriteFile(iconPath, i.data, 0644); err != nil {
		return "", fmt.Errorf("writing icon: %w", err)
	}

	return iconPath, nil
}

// renderDefaultIcon draws a speech bubble with three dots.
func renderDefaultIcon() image.Image {
	const size = 512

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	fill := func(cx, cy, r int, c color.Color) {
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= r*r {
					img.Set(x, y, c)
				}
			}
		}
	}

	center := size / 2
	fill(center, center, size/2-16, colornames.Steelblue)

	// tail of the bubble
	for y := center + 120; y < size-24; y++ {
		for x := center - 170; x < center-170+(size-24-y); x++ {
			img.Set(x, y, colornames.Steelblue)
		}
	}

	for _, dx := range []int{-110, 0, 110} {
		fill(center+dx, center, 36, colornames.White)
	}

	return img
}
