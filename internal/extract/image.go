package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// describeImage reports format, dimensions and color mode without decoding
// pixel data.
func describeImage(data []byte, fileName string) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	mode, ok := headerMode(format, data)
	if !ok {
		mode = colorMode(cfg.ColorModel)
	}

	return fmt.Sprintf("\nImage Analysis:\n- Format: %s\n- Size: %dx%d pixels\n- Mode: %s\n- File: %s\n",
		formatName(format), cfg.Width, cfg.Height, mode, fileName), nil
}

func formatName(format string) string {
	switch format {
	case "jpeg":
		return "JPEG"
	case "png":
		return "PNG"
	case "gif":
		return "GIF"
	case "bmp":
		return "BMP"
	case "webp":
		return "WEBP"
	default:
		return format
	}
}

// headerMode reads the stored pixel layout where the decoder's color model
// loses it: PNG and BMP decoders widen opaque truecolor to RGBA.
func headerMode(format string, data []byte) (string, bool) {
	switch format {
	case "png":
		// Color type follows the 8-byte signature, IHDR length and type,
		// width, height and bit depth.
		if len(data) < 26 {
			return "", false
		}
		switch data[25] {
		case 0:
			return "L", true
		case 2:
			return "RGB", true
		case 3:
			return "P", true
		case 4:
			return "LA", true
		case 6:
			return "RGBA", true
		}
	case "bmp":
		if len(data) < 30 {
			return "", false
		}
		switch binary.LittleEndian.Uint16(data[28:30]) {
		case 24:
			return "RGB", true
		case 32:
			return "RGBA", true
		}
	}
	return "", false
}

// colorMode maps a decoder color model to the conventional short mode names.
func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "RGBA"
	case color.YCbCrModel:
		return "RGB"
	case color.NYCbCrAModel:
		return "RGBA"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "A"
	default:
		return "RGB"
	}
}
