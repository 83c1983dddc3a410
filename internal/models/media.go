package models

import (
	"path/filepath"
	"strings"
)

// MediaKind is the closed set of attachment kinds a post can carry.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var mediaExtensions = map[string]MediaKind{
	"jpg":  MediaImage,
	"jpeg": MediaImage,
	"png":  MediaImage,
	"gif":  MediaImage,
	"webp": MediaImage,
	"mp4":  MediaVideo,
	"avi":  MediaVideo,
	"mov":  MediaVideo,
	"wmv":  MediaVideo,
}

// ClassifyMedia derives the media kind from a file name's extension.
// Unknown or missing extensions yield MediaNone.
func ClassifyMedia(filename string) MediaKind {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return MediaNone
	}
	return mediaExtensions[ext]
}

// MediaRef points at a stored attachment.
type MediaRef struct {
	URL  string
	Kind MediaKind
}
