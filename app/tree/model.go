// Package tree stores the bot menu: a forest of labelled nodes, each of which
// may own one attachment with an ordered list of media files.
package tree

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound          = errors.New("tree: not found")
	ErrDuplicateLabel    = errors.New("tree: duplicate sibling label")
	ErrCycle             = errors.New("tree: node cannot become its own ancestor")
	ErrEmptyLabel        = errors.New("tree: empty label")
	ErrInvalidKind       = errors.New("tree: invalid attachment kind")
	ErrIncompatibleMedia = errors.New("tree: media incompatible with attachment kind")
)

// Kind is the content type of an attachment.
type Kind string

const (
	KindText         Kind = "text"
	KindFile         Kind = "file"
	KindImage        Kind = "image"
	KindVideo        Kind = "video"
	KindImageOrVideo Kind = "image_or_video"
	KindMixed        Kind = "mixed_any"
)

var (
	imageExt = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}}
	videoExt = map[string]struct{}{".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".webm": {}}
)

// ParseKind accepts the stored names case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindFile, KindImage, KindVideo, KindImageOrVideo, KindMixed:
		return true
	}
	return false
}

// Accepts reports whether a file at path may belong to an attachment of kind k.
func (k Kind) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch k {
	case KindImage:
		return IsImage(path)
	case KindVideo:
		return IsVideo(path)
	case KindImageOrVideo:
		return IsImage(path) || IsVideo(path)
	case KindFile, KindMixed:
		return ext != "" && ext != "."
	}
	return false
}

// IsImage reports whether path has a photo extension.
func IsImage(path string) bool {
	_, ok := imageExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsVideo reports whether path has a video extension.
func IsVideo(path string) bool {
	_, ok := videoExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Node is one menu button.
type Node struct {
	ID       int64  `db:"id"`
	Label    string `db:"label"`
	ParentID *int64 `db:"parent_id"`
	Weight   int    `db:"weight"`
}

// IsRoot reports whether the node belongs to the top-level set.
func (n Node) IsRoot() bool { return n.ParentID == nil }

// Attachment is the content bound to a node.
type Attachment struct {
	ID     int64       `db:"id"`
	NodeID int64       `db:"node_id"`
	Kind   Kind        `db:"kind"`
	Text   string      `db:"body_text"`
	Media  []MediaItem `db:"-"`
}

// MediaItem is a single file of an attachment.
type MediaItem struct {
	ID            int64  `db:"id"`
	AttachmentID  int64  `db:"attachment_id"`
	SourcePath    string `db:"source_path"`
	ThumbnailPath string `db:"thumbnail_path"`
	Position      int    `db:"position"`
}
