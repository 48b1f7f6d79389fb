// Package imageprep transforms an uploaded binary before it goes to the
// remote store: format validation, downscale, re-encode, metadata strip.
// Pure - no network or database I/O - so it is retryable and cheap to test.
package imageprep

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"gallery/errs"
)

const (
	// MaxEdge bounds the longer edge of a prepared image.
	MaxEdge = 2560

	jpegQuality = 85
)

// mimeByExt maps allowed extensions to their canonical MIME type. Mobile
// clients often send application/octet-stream, so the extension is the
// primary check and the declared type only has to not contradict it.
var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var genericMimes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"application/unknown":      true,
}

type Prepared struct {
	Data     []byte
	FileName string
	MimeType string
	Width    int
	Height   int
}

// Prepare validates, downscales to MaxEdge on the longer side, re-encodes
// at a fixed quality, and names the output with a timestamp plus random
// suffix so colliding original names never collide after processing.
// Re-encoding drops all embedded metadata (EXIF orientation, GPS, device).
func Prepare(data []byte, originalName, declaredMime string) (*Prepared, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	canonical, ok := mimeByExt[ext]
	if !ok {
		return nil, errs.UnsupportedMedia("file type %q is not allowed", ext)
	}
	declared := normalizeMime(declaredMime)
	if !genericMimes[declared] && !mimeMatches(declared, canonical) {
		return nil, errs.UnsupportedMedia("declared type %q does not match %q", declared, ext)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedMedia, err, "image is corrupt or not a supported format")
	}
	bounds := img.Bounds().Size()
	if bounds.X > MaxEdge || bounds.Y > MaxEdge {
		// Thumbnail preserves aspect ratio and never upscales
		img = resize.Thumbnail(MaxEdge, MaxEdge, img, resize.Lanczos3)
	}

	out := &Prepared{}
	var buf bytes.Buffer
	if canonical == "image/png" {
		// Keep alpha for PNG; re-encode still strips ancillary chunks
		if err = png.Encode(&buf, img); err != nil {
			return nil, err
		}
		out.MimeType = "image/png"
		out.FileName = outputName(".png")
	} else {
		if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
		out.MimeType = "image/jpeg"
		out.FileName = outputName(".jpg")
	}
	out.Data = buf.Bytes()
	size := img.Bounds().Size()
	out.Width = size.X
	out.Height = size.Y
	return out, nil
}

func normalizeMime(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}

func mimeMatches(declared, canonical string) bool {
	if declared == canonical {
		return true
	}
	// Common jpeg variants clients report
	if canonical == "image/jpeg" {
		return declared == "image/jpg" || declared == "image/pjpeg"
	}
	return false
}

func outputName(ext string) string {
	return time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8] + ext
}
