package federation

import (
	"strings"
	"time"

	"github.com/deemkeen/copse/domain"
)

// Wire shapes exchanged with peers and served by the API.

type AuthorJSON struct {
	Type         string `json:"type"`
	Id           string `json:"id"`
	Host         string `json:"host"`
	DisplayName  string `json:"displayName"`
	Url          string `json:"url"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
}

type PostJSON struct {
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Id          string     `json:"id"`
	Source      string     `json:"source"`
	Origin      string     `json:"origin"`
	Description string     `json:"description"`
	ContentType string     `json:"contentType"`
	Content     string     `json:"content"`
	Author      AuthorJSON `json:"author"`
	Count       int        `json:"count"`
	Comments    string     `json:"comments"`
	Published   time.Time  `json:"published"`
	Visibility  string     `json:"visibility"`
	Unlisted    bool       `json:"unlisted"`
}

type CommentJSON struct {
	Type        string     `json:"type"`
	Id          string     `json:"id"`
	Author      AuthorJSON `json:"author"`
	Comment     string     `json:"comment"`
	ContentType string     `json:"contentType"`
	Published   time.Time  `json:"published"`
}

type LikeJSON struct {
	Type    string     `json:"type"`
	Summary string     `json:"summary"`
	Author  AuthorJSON `json:"author"`
	Object  string     `json:"object"`
}

type FollowJSON struct {
	Type    string     `json:"type"`
	Summary string     `json:"summary"`
	Actor   AuthorJSON `json:"actor"`
	Object  AuthorJSON `json:"object"`
}

func (r *Resolver) AuthorJSON(a *domain.Author) AuthorJSON {
	ref := r.AuthorRef(a)
	return AuthorJSON{
		Type:         "author",
		Id:           ref,
		Host:         r.Host(a),
		DisplayName:  a.DisplayName(),
		Url:          ref,
		Github:       a.Github,
		ProfileImage: a.ProfileImage,
	}
}

func (r *Resolver) PostJSON(p *domain.Post, author *domain.Author) PostJSON {
	authorJSON := r.AuthorJSON(author)
	postId := p.Id.String()
	if p.ExternId != nil {
		postId = *p.ExternId
	}
	ref := r.PostRef(authorJSON.Id, postId)
	return PostJSON{
		Type:        "post",
		Title:       p.Title,
		Id:          ref,
		Source:      p.Source,
		Origin:      p.Origin,
		Description: p.Description,
		ContentType: p.ContentType.Label(),
		Content:     p.Content,
		Author:      authorJSON,
		Count:       p.Count,
		Comments:    ref + "/comments",
		Published:   p.Published,
		Visibility:  p.Visibility.Label(),
		Unlisted:    p.Visibility == domain.VisibilityUnlisted,
	}
}

func (r *Resolver) CommentJSON(c *domain.Comment, postRef string, author *domain.Author) CommentJSON {
	commentId := c.Id.String()
	if c.ExternId != nil {
		commentId = *c.ExternId
	}
	return CommentJSON{
		Type:        "comment",
		Id:          r.CommentRef(postRef, commentId),
		Author:      r.AuthorJSON(author),
		Comment:     c.Comment,
		ContentType: c.ContentType,
		Published:   c.Published,
	}
}

// LikeSummary is the human readable line peers use to tell a post like
// from a comment like: its last word is the object type.
func LikeSummary(name string, objectType domain.ObjectType) string {
	return name + " Likes your " + string(objectType)
}

// ObjectTypeFromSummary reads the object type back from a like summary.
// Anything not ending in "post" is a comment like.
func ObjectTypeFromSummary(summary string) domain.ObjectType {
	words := strings.Fields(summary)
	if len(words) > 0 && strings.EqualFold(words[len(words)-1], "post") {
		return domain.ObjectPost
	}
	return domain.ObjectComment
}

func (r *Resolver) LikeJSON(liker *domain.Author, objectType domain.ObjectType, objectRef string) LikeJSON {
	return LikeJSON{
		Type:    "Like",
		Summary: LikeSummary(liker.DisplayName(), objectType),
		Author:  r.AuthorJSON(liker),
		Object:  objectRef,
	}
}

func (r *Resolver) FollowJSON(follower, target *domain.Author) FollowJSON {
	return FollowJSON{
		Type:    "follow",
		Summary: follower.DisplayName() + " wants to follow " + target.DisplayName(),
		Actor:   r.AuthorJSON(follower),
		Object:  r.AuthorJSON(target),
	}
}
