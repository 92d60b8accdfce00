// Package img handles map images outside the decoder: checking that external
// images exist as RGBA PNGs and exporting embedded ones.
package img

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/dyuri/twmap/internal/model"
)

// ErrNotRGBA is returned for external images that do not decode to 8-bit RGBA.
var ErrNotRGBA = errors.New("image is not in RGBA format")

// ExternalPath returns where an external image is looked up: <dir>/<name>.png
func ExternalPath(dir, name string) string {
	return filepath.Join(dir, name+".png")
}

// ValidateExternal checks that the named resource exists in dir and is an
// RGBA PNG. A failure is advisory; it never invalidates the map.
func ValidateExternal(dir, name string) error {
	path := ExternalPath(dir, name)
	pic, err := imaging.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("external image %s does not exist", path)
		}
		return fmt.Errorf("open external image %s: %w", path, err)
	}
	if pic.ColorModel() != color.NRGBAModel {
		return fmt.Errorf("%s: %w", path, ErrNotRGBA)
	}
	return nil
}

// Advise validates every external image of m against dir and returns one
// message per failure.
func Advise(m *model.Map, dir string) []string {
	var out []string
	for _, im := range m.Images {
		if im == nil || !im.External {
			continue
		}
		if err := ValidateExternal(dir, im.Name); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// ToNRGBA wraps the embedded pixels of im in an image. The pixels are shared.
func ToNRGBA(im *model.Image) (*image.NRGBA, error) {
	if im.External {
		return nil, fmt.Errorf("image %s is external", im.Name)
	}
	w, h := int(im.Width), int(im.Height)
	if len(im.Data) != w*h*4 {
		return nil, fmt.Errorf("image %s: %d bytes of pixels for %s", im.Name, len(im.Data), im.Resolution())
	}
	return &image.NRGBA{Pix: im.Data, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

// Export writes the embedded images of m as PNG files into outputDir and
// returns the written paths. Images without a usable name are named by index.
func Export(m *model.Map, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	for i, im := range m.Images {
		if im == nil || im.External {
			continue
		}
		pic, err := ToNRGBA(im)
		if err != nil {
			return written, err
		}
		path := filepath.Join(outputDir, fileName(i, im.Name))
		if err := imaging.Save(pic, path); err != nil {
			return written, fmt.Errorf("save %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func fileName(index int, name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = fmt.Sprintf("image_%d", index)
	}
	return name + ".png"
}
