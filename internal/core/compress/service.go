package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"compressor/internal/logger"
	"compressor/internal/platform/artifacts"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	DefaultQuality = 50
	contentType    = "image/jpeg"
)

// Service re-encodes fetched images as JPEG and stores the result.
type Service struct {
	store   artifacts.Store
	quality int
	log     *logger.Logger
}

func NewService(store artifacts.Store, quality int) *Service {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Service{store: store, quality: quality, log: logger.New("Compress")}
}

// Compress decodes data, encodes it as JPEG at the configured quality and
// saves it under FileName(productName, sourceURL).
func (s *Service) Compress(ctx context.Context, data []byte, productName, sourceURL string) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUndecodable, sourceURL, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return "", fmt.Errorf("encode %s: %w", sourceURL, err)
	}

	name := FileName(productName, sourceURL)
	if err := s.store.Save(ctx, name, contentType, buf.Bytes()); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	s.log.Debug().Str("file", name).Int("in", len(data)).Int("out", buf.Len()).Msg("image compressed")
	return name, nil
}

// FileName is compressed_{product}_{stem}.jpg where stem is the last path
// segment of sourceURL without its extension.
func FileName(productName, sourceURL string) string {
	return "compressed_" + sanitize(productName) + "_" + sanitize(stem(sourceURL)) + ".jpg"
}

// OutputURL is where the artifact is served, relative to baseURL.
func OutputURL(baseURL, name string) string {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + "compressed/" + url.PathEscape(name)
}

func stem(sourceURL string) string {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return "image"
	}
	if s := strings.TrimSuffix(base, path.Ext(base)); s != "" {
		return s
	}
	return base
}

var unsafeChars = strings.NewReplacer("/", "-", `\`, "-", "\x00", "-", ":", "-", "?", "-", "#", "-", "%", "-")

func sanitize(s string) string {
	s = unsafeChars.Replace(strings.TrimSpace(s))
	if s == "." || s == ".." {
		return strings.Repeat("-", len(s))
	}
	return s
}

var ErrUndecodable = errors.New("image could not be decoded")
