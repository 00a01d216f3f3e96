package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// writeHDR writes img as an uncompressed Radiance RGBE file. Alpha is
// dropped; color is written as stored, premultiplied.
func writeHDR(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y %d +X %d\n", img.Height, img.Width)

	px := floats(img)
	for i := 0; i < len(px); i += 4 {
		rgbe := toRGBE(px[i], px[i+1], px[i+2])
		if _, err := bw.Write(rgbe[:]); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// toRGBE packs a linear color into shared-exponent form.
func toRGBE(r, g, b float32) [4]byte {
	r, g, b = min(max(r, 0), 1e30), min(max(g, 0), 1e30), min(max(b, 0), 1e30)
	v := max(r, g, b)
	if v < 1e-32 || math.IsNaN(float64(v)) {
		return [4]byte{}
	}
	frac, exp := math.Frexp(float64(v))
	scale := frac * 256 / float64(v)
	return [4]byte{
		byte(float64(r) * scale),
		byte(float64(g) * scale),
		byte(float64(b) * scale),
		byte(exp + 128),
	}
}

// fromRGBE is the inverse of toRGBE, up to quantization.
func fromRGBE(p [4]byte) (r, g, b float32) {
	if p[3] == 0 {
		return 0, 0, 0
	}
	f := math.Ldexp(1, int(p[3])-(128+8))
	return float32(float64(p[0]) * f), float32(float64(p[1]) * f), float32(float64(p[2]) * f)
}
