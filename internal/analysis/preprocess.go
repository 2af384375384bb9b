package analysis

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// DecodeImage turns raw upload bytes into an image, honouring the EXIF
// orientation camera photos carry.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero sized image", ErrDecode)
	}
	return img, nil
}

// Preprocess scales img to InputSize x InputSize and encodes it as an
// interleaved RGB float tensor in [-1, 1].
func Preprocess(img image.Image) []float32 {
	return encodeTensor(scaleToInput(img))
}

// scaleToInput resizes to the model square. Aspect ratio is not preserved.
func scaleToInput(img image.Image) image.Image {
	return resize.Resize(InputSize, InputSize, img, resize.Bilinear)
}

// encodeTensor writes R, G, B for every pixel in row-major order.
func encodeTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	data := make([]float32, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data = append(data, normalizeChannel(c.R), normalizeChannel(c.G), normalizeChannel(c.B))
		}
	}
	return data
}

func normalizeChannel(v uint8) float32 {
	return float32(v)/255.0*2.0 - 1.0
}
