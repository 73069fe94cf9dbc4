package federation

import (
	"strings"
	"time"

	"github.com/deemkeen/copse/domain"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Event is one of the closed set of inbox variants.
type Event interface {
	Kind() string
	ActorRef() string
}

// ActorRefJSON is an embedded identity reference such as {"id": "..."}.
type ActorRefJSON struct {
	Id          string `json:"id" validate:"required"`
	DisplayName string `json:"displayName"`
}

type FollowEvent struct {
	Summary string        `json:"summary"`
	Actor   *ActorRefJSON `json:"actor"`
	Author  *ActorRefJSON `json:"author"`
	Object  *ActorRefJSON `json:"object"`
}

func (e *FollowEvent) Kind() string { return "follow" }

// ActorRef prefers actor and falls back to author; peers send either.
func (e *FollowEvent) ActorRef() string {
	if a := e.actor(); a != nil {
		return a.Id
	}
	return ""
}

func (e *FollowEvent) actor() *ActorRefJSON {
	if e.Actor != nil {
		return e.Actor
	}
	return e.Author
}

type PostEvent struct {
	Id          string        `json:"id" validate:"required"`
	Title       string        `json:"title"`
	Source      string        `json:"source"`
	Origin      string        `json:"origin"`
	Description string        `json:"description"`
	ContentType string        `json:"contentType" validate:"required"`
	Content     string        `json:"content"`
	Visibility  string        `json:"visibility" validate:"required"`
	Published   string        `json:"published"`
	Author      *ActorRefJSON `json:"author" validate:"required"`
}

func (e *PostEvent) Kind() string     { return "post" }
func (e *PostEvent) ActorRef() string { return e.Author.Id }

type CommentEvent struct {
	Id          string        `json:"id" validate:"required"`
	Comment     string        `json:"comment" validate:"required"`
	ContentType string        `json:"contentType" validate:"required"`
	Published   string        `json:"published"`
	Author      *ActorRefJSON `json:"author" validate:"required"`
}

func (e *CommentEvent) Kind() string     { return "comment" }
func (e *CommentEvent) ActorRef() string { return e.Author.Id }

type LikeEvent struct {
	Summary string        `json:"summary" validate:"required"`
	Object  string        `json:"object" validate:"required"`
	Author  *ActorRefJSON `json:"author" validate:"required"`
}

func (e *LikeEvent) Kind() string     { return "like" }
func (e *LikeEvent) ActorRef() string { return e.Author.Id }

// DecodeEvent reads the type tag, rejects anything outside post, comment,
// like and follow, then decodes and validates the matching variant.
func DecodeEvent(raw []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, err.Error())
	}

	var ev Event
	switch strings.ToLower(strings.TrimSpace(envelope.Type)) {
	case "follow":
		ev = &FollowEvent{}
	case "post":
		ev = &PostEvent{}
	case "comment":
		ev = &CommentEvent{}
	case "like":
		ev = &LikeEvent{}
	default:
		return nil, errors.Wrapf(domain.ErrUnsupported, "type %q", envelope.Type)
	}

	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, err.Error())
	}
	if err := validate.Struct(ev); err != nil {
		return nil, errors.Wrap(domain.ErrMalformed, err.Error())
	}
	if f, ok := ev.(*FollowEvent); ok && f.actor() == nil {
		return nil, errors.Wrap(domain.ErrMalformed, "follow without actor")
	}
	return ev, nil
}

// parsePublished accepts RFC 3339 with or without fractional seconds and
// falls back to now for anything else.
func parsePublished(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now()
}
