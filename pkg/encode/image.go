package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const jpegQuality = 75

type imageEncoder struct{}

func (imageEncoder) DType() DType { return DTypeImage }

func (imageEncoder) Expects() []string { return []string{"encode.Image"} }

func (e imageEncoder) CheckType(value any) error {
	if _, ok := asImage(value); !ok {
		return newTypeError(e, value)
	}
	return nil
}

// CheckShape never fails, images are passed through at their own size.
func (imageEncoder) CheckShape(any, Shape) error { return nil }

func (e imageEncoder) EncodeJSON(value any) (any, error) {
	return encodeBinaryJSON(e, value)
}

func (e imageEncoder) DecodeJSON(encoded any) (any, error) {
	return decodeBinaryJSON(e, encoded)
}

func (e imageEncoder) FileExtension(value any) (string, error) {
	img, ok := asImage(value)
	if !ok {
		return "", newTypeError(e, value)
	}
	if img.Format == "" {
		return "", ErrMissingImageFormat
	}
	return strings.ToLower(img.Format), nil
}

func (e imageEncoder) MediaType(value any) (string, error) {
	ext, err := e.FileExtension(value)
	if err != nil {
		return "", err
	}
	return "image/" + ext, nil
}

// Encode drops any alpha channel and writes the image in its own format.
func (e imageEncoder) Encode(value any) ([]byte, error) {
	img, ok := asImage(value)
	if !ok {
		return nil, newTypeError(e, value)
	}
	if img.Format == "" {
		return nil, ErrMissingImageFormat
	}
	m := dropAlpha(img.Image)

	var buf bytes.Buffer
	var err error
	switch strings.ToLower(img.Format) {
	case "png":
		err = png.Encode(&buf, m)
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, m, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		err = gif.Encode(&buf, m, nil)
	case "bmp":
		err = bmp.Encode(&buf, m)
	case "tiff", "tif":
		err = tiff.Encode(&buf, m, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImageType, img.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", img.Format, err)
	}
	return buf.Bytes(), nil
}

// Decode reads a complete image. The format is taken from the data itself.
func (imageEncoder) Decode(data []byte) (any, error) {
	m, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return Image{Image: m, Format: strings.ToUpper(format)}, nil
}

func asImage(value any) (Image, bool) {
	switch v := value.(type) {
	case Image:
		return v, v.Image != nil
	case *Image:
		if v != nil && v.Image != nil {
			return *v, true
		}
	}
	return Image{}, false
}

type opaquer interface {
	Opaque() bool
}

// dropAlpha returns m unchanged when it is opaque or has a gray or
// alpha-free color model. Anything else becomes RGBA with the alpha channel
// discarded, not composited, so it is written as three-channel RGB.
func dropAlpha(m image.Image) image.Image {
	switch m.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return m
	}
	if o, ok := m.(opaquer); ok && o.Opaque() {
		return m
	}

	b := m.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}
