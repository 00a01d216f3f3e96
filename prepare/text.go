package prepare

import (
	"image"
	"image/color"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/shadergraph/scene"
)

// text rasterizes a Text node into an RGBA8 image. Lines are split on
// newlines and drawn with the 7x13 bitmap face, then scaled up by the
// integer scale factor with nearest-neighbor sampling.
func (b *baker) text(n *scene.Node) error {
	img := RasterizeText(n.StringOr("text", ""), colorParam(n, "color"), n.IntOr("scale", 1))
	bounds := img.Bounds()
	b.out[BakeKey{n.ID, "texture", KindPixels}] = &Baked{
		Pixels: img.Pix,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
	return nil
}

// RasterizeText draws s into a new image. An empty string yields a single
// transparent pixel.
func RasterizeText(s string, c color.RGBA, scale int) *image.RGBA {
	face := basicfont.Face7x13
	lines := strings.Split(norm.NFC.String(s), "\n")
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	height := lineHeight * len(lines)
	if width == 0 || height == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	src := image.NewRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(0, i*lineHeight+metrics.Ascent.Ceil())
		d.DrawString(line)
	}
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func colorParam(n *scene.Node, key string) color.RGBA {
	v, ok := n.Floats(key)
	if !ok || len(v) < 3 {
		return color.RGBA{255, 255, 255, 255}
	}
	a := 1.0
	if len(v) > 3 {
		a = v[3]
	}
	to8 := func(f float64) uint8 {
		return uint8(min(max(f, 0), 1)*255 + 0.5)
	}
	// color.RGBA is premultiplied.
	return color.RGBA{to8(v[0] * a), to8(v[1] * a), to8(v[2] * a), to8(a)}
}
