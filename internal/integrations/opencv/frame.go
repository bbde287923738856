package opencv

import (
	"fmt"
	"image"

	"attendance-kiosk/internal/camera"

	"gocv.io/x/gocv"
)

// defaultJPEGQuality gilt, wenn keine gültige Qualität konfiguriert ist.
const defaultJPEGQuality = 95

// prepare scales src to the configured size (into scaled) and mirrors it when
// requested. The returned Mat is either src or scaled and must not be closed
// by the caller.
func prepare(src gocv.Mat, scaled *gocv.Mat, settings camera.Settings) gocv.Mat {
	img := src
	if settings.Width > 0 && settings.Height > 0 &&
		(img.Cols() != settings.Width || img.Rows() != settings.Height) {
		gocv.Resize(img, scaled, image.Pt(settings.Width, settings.Height), 0, 0, gocv.InterpolationLinear)
		img = *scaled
	}
	if settings.Mirror {
		gocv.Flip(img, &img, 1)
	}
	return img
}

// encodeFrame encodes img in the configured format and wraps it as a data URI.
func encodeFrame(img gocv.Mat, settings camera.Settings) (string, error) {
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	switch settings.Format {
	case camera.FormatPNG:
		buf, err = gocv.IMEncode(gocv.PNGFileExt, img)
	default:
		quality := settings.Quality
		if quality <= 0 || quality > 100 {
			quality = defaultJPEGQuality
		}
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close releases.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return camera.EncodeDataURI(settings.Format.MIMEType(), out), nil
}
