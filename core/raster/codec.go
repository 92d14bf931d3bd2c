package raster

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// EncodePPM returns the binary (P6) PPM form of img. These bytes are the
// canonical content used for de-duplication.
func EncodePPM(img image.Image) []byte {
	b := img.Bounds()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P6\n%d %d\n255\n", b.Dx(), b.Dy())
	buf.Grow(b.Dx() * b.Dy() * 3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			buf.Write([]byte{c.R, c.G, c.B})
		}
	}
	return buf.Bytes()
}

// DecodePPM parses a binary PPM with a maxval of 255.
func DecodePPM(data []byte) (*image.RGBA, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var magic string
	var w, h, maxval int
	if _, err := fmt.Fscan(r, &magic, &w, &h, &maxval); err != nil {
		return nil, &errors.FormatError{Structure: "ppm", Offset: 0, Message: "bad header", Err: err}
	}
	if magic != "P6" || maxval != 255 || w < 0 || h < 0 {
		return nil, errors.NewFormat("ppm", 0, fmt.Sprintf("unsupported header %s %dx%d/%d", magic, w, h, maxval))
	}
	// Exactly one whitespace byte separates the header from the raster.
	if _, err := r.ReadByte(); err != nil {
		return nil, &errors.FormatError{Structure: "ppm", Offset: -1, Message: "missing raster", Err: err}
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	px := make([]byte, 3)
	for i := 0; i < w*h; i++ {
		if _, err := io.ReadFull(r, px); err != nil {
			return nil, &errors.FormatError{Structure: "ppm", Offset: -1, Message: fmt.Sprintf("raster truncated at pixel %d", i), Err: err}
		}
		copy(img.Pix[i*4:], []byte{px[0], px[1], px[2], 0xff})
	}
	return img, nil
}

// EncodeXBM returns img as an X bitmap named name. Pixels darker than half
// intensity become set bits, least significant bit first, rows padded to a
// byte.
func EncodeXBM(name string, img image.Image) []byte {
	b := img.Bounds()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#define %s_width %d\n#define %s_height %d\n", name, b.Dx(), name, b.Dy())
	fmt.Fprintf(&buf, "static char %s_bits[] = {\n", name)

	var bits []string
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x0 := b.Min.X; x0 < b.Max.X; x0 += 8 {
			var v byte
			for i := 0; i < 8 && x0+i < b.Max.X; i++ {
				if dark(img.At(x0+i, y)) {
					v |= 1 << i
				}
			}
			bits = append(bits, fmt.Sprintf("0x%02x", v))
		}
	}
	for i := 0; i < len(bits); i += 15 {
		line := bits[i:min(i+15, len(bits))]
		buf.WriteString(" " + strings.Join(line, ","))
		if i+15 < len(bits) {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("};\n")
	return buf.Bytes()
}

func dark(c color.Color) bool {
	g := color.GrayModel.Convert(c).(color.Gray)
	return g.Y < 0x80
}

// WriteBMP writes img as a Windows bitmap for the device converter.
func WriteBMP(w io.Writer, img image.Image) error {
	return bmp.Encode(w, img)
}

// ReadBMP decodes a Windows bitmap.
func ReadBMP(r io.Reader) (image.Image, error) {
	return bmp.Decode(r)
}
