package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType is stored as a one letter code.
type ContentType string

const (
	ContentPlain    ContentType = "t"
	ContentMarkdown ContentType = "m"
	ContentBase64   ContentType = "b"
	ContentPNG      ContentType = "p"
	ContentJPEG     ContentType = "j"
)

var contentTypeLabels = map[ContentType]string{
	ContentPlain:    "text/plain",
	ContentMarkdown: "text/markdown",
	ContentBase64:   "application/base64",
	ContentPNG:      "image/png;base64",
	ContentJPEG:     "image/jpeg;base64",
}

func (c ContentType) Label() string {
	return contentTypeLabels[c]
}

func (c ContentType) IsImage() bool {
	return c == ContentPNG || c == ContentJPEG
}

// ParseContentType maps a wire label such as "text/markdown" to its code.
func ParseContentType(label string) (ContentType, bool) {
	label = strings.TrimSpace(strings.ToLower(label))
	for code, l := range contentTypeLabels {
		if l == label {
			return code, true
		}
	}
	return "", false
}

// Visibility is stored as a one letter code.
type Visibility string

const (
	VisibilityPublic   Visibility = "p"
	VisibilityFriends  Visibility = "f"
	VisibilityUnlisted Visibility = "u"
)

var visibilityLabels = map[Visibility]string{
	VisibilityPublic:   "PUBLIC",
	VisibilityFriends:  "FRIENDS",
	VisibilityUnlisted: "UNLISTED",
}

func (v Visibility) Label() string {
	return visibilityLabels[v]
}

// ParseVisibility maps a label such as "friends" or "FRIENDS" to its code.
func ParseVisibility(label string) (Visibility, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	for code, l := range visibilityLabels {
		if l == label {
			return code, true
		}
	}
	return "", false
}

// Post is owned by exactly one author. ExternId is set only for posts
// materialized from a peer.
type Post struct {
	Id          uuid.UUID
	AuthorId    uuid.UUID
	ExternId    *string
	Title       string
	Description string
	Source      string
	Origin      string
	ContentType ContentType
	Content     string
	Visibility  Visibility
	Count       int
	Published   time.Time
}

func (p *Post) IsRemoteOrigin() bool {
	return p.ExternId != nil
}
