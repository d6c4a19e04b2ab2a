// Package decode is the image decoder external collaborator: given a
// file path it returns 8-bit RGBA-compatible pixels, or an error. It
// registers every still-image codec the engine claims to support,
// including the three golang.org/x/image formats the standard library
// doesn't carry (BMP, WebP, TIFF).
package decode

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kestrelav/simdup/errs"
)

// Extensions lists the file extensions (without the leading dot) the
// file traverser treats as still images.
var Extensions = []string{"png", "jpg", "jpeg", "bmp", "gif", "webp", "tif", "tiff"}

// Decoder turns an image file on disk into decoded pixels. The engine
// depends on this interface rather than the package-level Decode func
// so tests can substitute a fake.
type Decoder interface {
	Decode(path string) (image.Image, error)
}

// Default is the Decoder backed by the standard image registry plus
// the golang.org/x/image codecs imported above.
type Default struct{}

func (Default) Decode(path string) (image.Image, error) {
	return Decode(path)
}

// Decode opens path and decodes it with whichever registered codec
// claims to recognize it.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, errs.New(errs.NotFound, "decode.Decode", err)
		case os.IsPermission(err):
			return nil, errs.New(errs.Permission, "decode.Decode", err)
		default:
			return nil, errs.New(errs.DecodeFailed, "decode.Decode", err)
		}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errs.New(errs.DecodeFailed, "decode.Decode", err)
	}
	return img, nil
}
