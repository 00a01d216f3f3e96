// Package export writes read-back scene textures to image files.
//
// 8-bit textures go to PNG, TIFF or BMP. Floating-point textures only go
// to Radiance HDR; sending one to an 8-bit container is a
// *FormatMismatchError rather than a silent clamp.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/text/cases"

	"github.com/gogpu/shadergraph/internal/logging"
)

var logger logging.Cell

// SetLogger sets the logger for the export package. nil restores silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

var (
	// ErrFormatMismatch is matched by *FormatMismatchError.
	ErrFormatMismatch = errors.New("export: format mismatch")

	// ErrUnknownExtension is returned for file extensions with no encoder.
	ErrUnknownExtension = errors.New("export: unknown file extension")

	// ErrBadImage is returned when Pix does not match the declared size.
	ErrBadImage = errors.New("export: pixel data does not match size")
)

// FormatMismatchError reports floating-point content sent to a file type
// that cannot hold it.
type FormatMismatchError struct {
	Ext    string
	Format gputypes.TextureFormat
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("export: %s content cannot be written as %s; use .hdr", e.Format, e.Ext)
}

// Is reports ErrFormatMismatch equivalence.
func (e *FormatMismatchError) Is(target error) bool { return target == ErrFormatMismatch }

// Image is a texture read back from the GPU. Rows are top first and
// tightly packed.
type Image struct {
	Width  int
	Height int
	Format gputypes.TextureFormat
	Pix    []byte
}

// Supported file extensions.
const (
	ExtPNG  = ".png"
	ExtTIFF = ".tiff"
	ExtTIF  = ".tif"
	ExtBMP  = ".bmp"
	ExtHDR  = ".hdr"
)

// IsFloat reports whether f stores floating-point channels.
func IsFloat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA16Float || f == gputypes.TextureFormatRGBA32Float
}

func bytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	}
	return 4
}

func foldExt(ext string) string {
	return cases.Fold().String(ext)
}

// WriteFile encodes img into path, choosing the encoder from the file
// extension.
func WriteFile(path string, img *Image) (err error) {
	ext := foldExt(filepath.Ext(path))
	if err := check(ext, img); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("export: %w", cerr)
		}
	}()
	w := bufio.NewWriter(f)
	if err := Write(w, ext, img); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	logger.Load().Info("export: wrote image", "path", path, "width", img.Width, "height", img.Height, "format", img.Format.String())
	return nil
}

// Write encodes img to w in the container named by ext.
func Write(w io.Writer, ext string, img *Image) error {
	ext = foldExt(ext)
	if err := check(ext, img); err != nil {
		return err
	}
	switch ext {
	case ExtHDR:
		return writeHDR(w, img)
	case ExtPNG:
		return png.Encode(w, ToNRGBA(img))
	case ExtTIFF, ExtTIF:
		return tiff.Encode(w, ToNRGBA(img), &tiff.Options{Compression: tiff.Deflate})
	case ExtBMP:
		return bmp.Encode(w, ToNRGBA(img))
	}
	return fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
}

func check(ext string, img *Image) error {
	switch ext {
	case ExtPNG, ExtTIFF, ExtTIF, ExtBMP:
		if IsFloat(img.Format) {
			return &FormatMismatchError{Ext: ext, Format: img.Format}
		}
	case ExtHDR:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Pix) != img.Width*img.Height*bytesPerPixel(img.Format) {
		return fmt.Errorf("%w: %dx%d %s with %d bytes", ErrBadImage, img.Width, img.Height, img.Format, len(img.Pix))
	}
	return nil
}

// ToNRGBA converts an 8-bit image to image.NRGBA. Render targets hold
// premultiplied color, so channels are divided by alpha.
func ToNRGBA(img *Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	bgra := img.Format == gputypes.TextureFormatBGRA8Unorm || img.Format == gputypes.TextureFormatBGRA8UnormSrgb
	for i := 0; i+3 < len(img.Pix) && i+3 < len(out.Pix); i += 4 {
		r, g, b, a := img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
		if bgra {
			r, b = b, r
		}
		if a != 0 && a != 255 {
			r = unpremul(r, a)
			g = unpremul(g, a)
			b = unpremul(b, a)
		}
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = r, g, b, a
	}
	return out
}

func unpremul(c, a uint8) uint8 {
	return uint8(min(int(c)*255/int(a), 255))
}

// floats returns the pixels of img as RGBA float32 values.
func floats(img *Image) []float32 {
	n := img.Width * img.Height * 4
	out := make([]float32, n)
	switch img.Format {
	case gputypes.TextureFormatRGBA32Float:
		for i := range out {
			out[i] = math.Float32frombits(le32(img.Pix[4*i:]))
		}
	case gputypes.TextureFormatRGBA16Float:
		for i := range out {
			out[i] = halfToFloat(uint16(img.Pix[2*i]) | uint16(img.Pix[2*i+1])<<8)
		}
	default:
		nrgba := ToNRGBA(img)
		for i := range out {
			out[i] = float32(nrgba.Pix[i]) / 255
		}
	}
	return out
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// halfToFloat widens an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// Subnormal: renormalize.
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
}
