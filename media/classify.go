package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sdcpainting/referral_site/models"
)

var kindByExtension = map[string]string{
	".png":  models.MediaKindImage,
	".jpg":  models.MediaKindImage,
	".jpeg": models.MediaKindImage,
	".gif":  models.MediaKindImage,
	".webp": models.MediaKindImage,
	".bmp":  models.MediaKindImage,
	".mp4":  models.MediaKindVideo,
	".mov":  models.MediaKindVideo,
	".webm": models.MediaKindVideo,
}

var kindBySniffedType = map[string]string{
	"image/png":       models.MediaKindImage,
	"image/jpeg":      models.MediaKindImage,
	"image/gif":       models.MediaKindImage,
	"image/webp":      models.MediaKindImage,
	"image/bmp":       models.MediaKindImage,
	"video/mp4":       models.MediaKindVideo,
	"video/quicktime": models.MediaKindVideo,
	"video/webm":      models.MediaKindVideo,
}

// Classification is the result of checking an upload's name and content.
type Classification struct {
	Kind      string
	MIME      string
	Extension string
}

// KindForFilename checks the extension against the allow-list. It is the
// cheap check done while the request is still open.
func KindForFilename(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := kindByExtension[ext]
	if !ok {
		if ext == "" {
			return "", unsupported(filename, "missing file extension")
		}
		return "", unsupported(filename, "extension %s is not allowed", ext)
	}
	return kind, nil
}

// Classify cross-checks the declared extension with the sniffed content of
// the file at path.
func Classify(path, filename string) (Classification, error) {
	kind, err := KindForFilename(filename)
	if err != nil {
		return Classification{}, err
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return Classification{}, failed("sniff", fmt.Errorf("detect %s: %w", filename, err))
	}

	for m := detected; m != nil; m = m.Parent() {
		sniffedKind, ok := kindBySniffedType[m.String()]
		if !ok {
			continue
		}
		if sniffedKind != kind {
			return Classification{}, unsupported(filename, "content is %s but extension says %s", m.String(), kind)
		}
		return Classification{
			Kind:      kind,
			MIME:      m.String(),
			Extension: strings.ToLower(filepath.Ext(filename)),
		}, nil
	}
	return Classification{}, unsupported(filename, "content type %s is not an accepted image or video", detected.String())
}
