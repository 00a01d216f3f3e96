package plan

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
)

// ErrImageDecode is matched by *ImageError.
var ErrImageDecode = errors.New("plan: image decode failed")

// ImageError reports image bytes that could not be decoded.
type ImageError struct {
	NodeID string
	Source string
	Err    error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("plan: node %q: image %s: %v", e.NodeID, e.Source, e.Err)
}

// Is reports ErrImageDecode equivalence.
func (e *ImageError) Is(target error) bool { return target == ErrImageDecode }

func (e *ImageError) Unwrap() error { return e.Err }

var errNoAsset = errors.New("not available")

// upload declares a pixel buffer and the rgba8unorm texture it fills.
// Rows are stored top first, as decoded.
func (b *builder) upload(n *scene.Node, pix []byte, w, h int) (string, error) {
	name := b.p.ResourceNames[n.ID]
	buf := name + "_pixels"
	if err := b.plan.DeclareBuffer(BufferDecl{Name: buf, Kind: BufferPixels, Data: pix, Stride: uint32(4 * w)}); err != nil {
		return "", err
	}
	err := b.plan.DeclareTexture(TextureDecl{
		Name:   name,
		NodeID: n.ID,
		Width:  w,
		Height: h,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Upload: buf,
	})
	return name, err
}

// text uploads the baked glyph image of a Text node.
func (b *builder) text(n *scene.Node) (string, error) {
	baked, ok := b.p.Baked[prepare.BakeKey{NodeID: n.ID, PortID: "texture", Kind: prepare.KindPixels}]
	if !ok {
		img := prepare.RasterizeText(n.StringOr("text", ""), color.RGBA{255, 255, 255, 255}, 1)
		return b.upload(n, img.Pix, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return b.upload(n, baked.Pixels, baked.Width, baked.Height)
}

// image uploads the decoded image of an ImageTexture node. An image that
// cannot be obtained is replaced by one white pixel; bytes that fail to
// decode are an error.
func (b *builder) image(n *scene.Node) (string, error) {
	key, value := prepare.ImageSource(n)
	data, err := b.imageBytes(key, value)
	if err != nil {
		b.log.Warn("plan: image unavailable, using placeholder", "node", n.ID, "source", key, "error", err)
		return b.upload(n, []byte{255, 255, 255, 255}, 1, 1)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", &ImageError{NodeID: n.ID, Source: key, Err: err}
	}
	rgba := toRGBA(img)
	return b.upload(n, rgba.Pix, rgba.Bounds().Dx(), rgba.Bounds().Dy())
}

func (b *builder) imageBytes(key, value string) ([]byte, error) {
	switch key {
	case "assetId":
		if b.opts.Assets == nil {
			return nil, errNoAsset
		}
		data, ok := b.opts.Assets.Asset(value)
		if !ok {
			return nil, fmt.Errorf("asset %q: %w", value, errNoAsset)
		}
		return data, nil
	case "dataUrl":
		return DecodeDataURL(value)
	case "path":
		if b.opts.BaseDir == "" || !filepath.IsLocal(value) {
			return nil, fmt.Errorf("path %q: %w", value, errNoAsset)
		}
		return os.ReadFile(filepath.Join(b.opts.BaseDir, value))
	}
	return nil, errNoAsset
}

// DecodeDataURL returns the payload of a data: URL.
func DecodeDataURL(s string) ([]byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("plan: not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("plan: data URL has no payload")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// toRGBA converts img to RGBA8 with its origin at the top-left pixel.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, bounds.Min, xdraw.Src)
	return dst
}
