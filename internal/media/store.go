// Package media stores uploaded post attachments and profile images on the
// local filesystem and maps them to public URLs.
package media

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"strings"
	"time"

	"prok/internal/config"
	"prok/internal/models"
	"prok/internal/observability"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Storage layout and encoding parameters.
const (
	PostDir         = "posts"
	ProfileDir      = "profile_images"
	ProfileMaxSide  = 800
	JPEGQuality     = 85
	WebPQuality     = 80
	DefaultRoot     = "./uploads"
	DefaultURLRoot  = "/uploads/"
	defaultPostMax  = 16 << 20
	defaultImageMax = 5 << 20
	// MaxFilenameLen caps the sanitised name kept after the unique prefix.
	MaxFilenameLen = 100
)

// Validation failures returned to callers.
var (
	ErrUnsupportedMedia = models.NewValidationError("Unsupported media type")
	ErrImageType        = models.NewValidationError("File type not allowed. Please upload PNG, JPG, JPEG, GIF, or WebP files.")
	ErrInvalidImage     = models.NewValidationError("Invalid image file. Please upload a valid image.")
)

// Store writes uploads below a root directory.
type Store struct {
	root            string
	urlPrefix       string
	maxPostBytes    int64
	maxProfileBytes int64
	now             func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for profile image names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore builds a Store from cfg. A nil cfg uses the defaults.
func NewStore(cfg *config.Config, opts ...Option) *Store {
	s := &Store{
		root:            DefaultRoot,
		urlPrefix:       DefaultURLRoot,
		maxPostBytes:    defaultPostMax,
		maxProfileBytes: defaultImageMax,
		now:             time.Now,
	}
	if cfg != nil {
		if cfg.UploadDir != "" {
			s.root = cfg.UploadDir
		}
		if cfg.UploadURLPrefix != "" {
			s.urlPrefix = cfg.UploadURLPrefix
		}
		if n := cfg.MaxUploadBytes(); n > 0 {
			s.maxPostBytes = n
		}
		if n := cfg.ProfileImageMaxBytes(); n > 0 {
			s.maxProfileBytes = n
		}
	}
	if !strings.HasSuffix(s.urlPrefix, "/") {
		s.urlPrefix += "/"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root is the directory uploads are written under.
func (s *Store) Root() string { return s.root }

// URLPrefix is the public prefix every stored URL starts with.
func (s *Store) URLPrefix() string { return s.urlPrefix }

// MaxUploadBytes is the largest upload any Save method accepts.
func (s *Store) MaxUploadBytes() int64 { return max(s.maxPostBytes, s.maxProfileBytes) }

// SavePostMedia stores a post attachment as posts/<uuid-hex>_<name>.
func (s *Store) SavePostMedia(ctx context.Context, filename string, content []byte) (models.MediaRef, error) {
	_, span := observability.StartServiceSpan(ctx, "media", "SavePostMedia")
	defer span.End()

	kind := models.ClassifyMedia(filename)
	if kind == models.MediaNone {
		return models.MediaRef{}, ErrUnsupportedMedia
	}
	if int64(len(content)) > s.maxPostBytes {
		return models.MediaRef{}, models.NewPayloadTooLargeError(fmt.Sprintf("File too large. Maximum size is %dMB", s.maxPostBytes>>20))
	}
	if kind == models.MediaImage {
		if !isImageContent(content) {
			return models.MediaRef{}, ErrInvalidImage
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(content)); err != nil {
			return models.MediaRef{}, ErrInvalidImage
		}
	}

	id := uuid.New()
	name := hex.EncodeToString(id[:]) + "_" + SafeFilename(filename)
	rel := PostDir + "/" + name
	if err := s.write(rel, content); err != nil {
		observability.EndSpan(span, err)
		return models.MediaRef{}, models.NewInternalError(err)
	}

	observability.MediaUploadBytes.WithLabelValues(string(kind)).Observe(float64(len(content)))
	return models.MediaRef{URL: s.urlPrefix + rel, Kind: kind}, nil
}

// SaveProfileImage normalises an uploaded avatar to a JPEG no larger than
// 800x800 on a white background and writes a WebP companion beside it.
func (s *Store) SaveProfileImage(ctx context.Context, filename string, content []byte) (string, error) {
	_, span := observability.StartServiceSpan(ctx, "media", "SaveProfileImage")
	defer span.End()

	if models.ClassifyMedia(filename) != models.MediaImage {
		return "", ErrImageType
	}
	if int64(len(content)) > s.maxProfileBytes {
		return "", models.NewPayloadTooLargeError(fmt.Sprintf("File too large. Maximum size is %dMB", s.maxProfileBytes>>20))
	}
	if !isImageContent(content) {
		return "", ErrInvalidImage
	}
	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", ErrInvalidImage
	}

	img := resizeToFit(flatten(decoded), ProfileMaxSide, ProfileMaxSide)

	jpg, err := encodeJPEG(img, JPEGQuality)
	if err != nil {
		observability.EndSpan(span, err)
		return "", models.NewInternalError(err)
	}
	webpBytes, err := encodeWebP(img, WebPQuality)
	if err != nil {
		observability.EndSpan(span, err)
		return "", models.NewInternalError(err)
	}

	id := uuid.New()
	base := s.now().Format("20060102_150405") + "_" + hex.EncodeToString(id[:4])
	jpgRel := ProfileDir + "/" + base + ".jpg"
	webpRel := ProfileDir + "/" + base + ".webp"

	if err := s.write(jpgRel, jpg); err != nil {
		observability.EndSpan(span, err)
		return "", models.NewInternalError(err)
	}
	if err := s.write(webpRel, webpBytes); err != nil {
		_ = os.Remove(filepath.Join(s.root, filepath.FromSlash(jpgRel)))
		observability.EndSpan(span, err)
		return "", models.NewInternalError(err)
	}

	observability.MediaUploadBytes.WithLabelValues("profile_image").Observe(float64(len(jpg)))
	return s.urlPrefix + jpgRel, nil
}

// Delete removes a file previously returned by this store, along with its
// WebP companion. URLs outside the store are ignored.
func (s *Store) Delete(url string) error {
	path, ok := s.pathFor(url)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if strings.HasSuffix(path, ".jpg") {
		_ = os.Remove(strings.TrimSuffix(path, ".jpg") + ".webp")
	}
	return nil
}

// pathFor maps a public URL back to a path under root.
func (s *Store) pathFor(url string) (string, bool) {
	if !strings.HasPrefix(url, s.urlPrefix) {
		return "", false
	}
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(url, s.urlPrefix)))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(s.root, rel), true
}

func (s *Store) write(rel string, data []byte) error {
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SafeFilename reduces name to ASCII letters, digits, dots, dashes and
// underscores, dropping any directory part. Long names are cut to
// MaxFilenameLen, keeping the extension.
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if out == "" {
		return "upload" + strings.ToLower(filepath.Ext(name))
	}
	if len(out) > MaxFilenameLen {
		ext := filepath.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		out = out[:MaxFilenameLen-len(ext)] + ext
	}
	return out
}

func isImageContent(content []byte) bool {
	mt := mimetype.Detect(content)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// flatten composites src onto an opaque white canvas.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
