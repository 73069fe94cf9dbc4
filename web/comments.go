package web

import (
	"context"
	"net/http"
	"time"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

func (s *Server) commentsJSON(ctx context.Context, comments []domain.Comment, postRef string) ([]federation.CommentJSON, error) {
	items := make([]federation.CommentJSON, 0, len(comments))
	for i := range comments {
		author, err := s.store.ReadAuthorById(ctx, comments[i].AuthorId)
		if err != nil {
			return nil, err
		}
		items = append(items, s.resolver.CommentJSON(&comments[i], postRef, author))
	}
	return items, nil
}

// notify appends a notification for a local recipient of a locally
// originated event. Self-notifications are skipped.
func (s *Server) notify(ctx context.Context, recipient, actor *domain.Author, kind string, payload any) {
	if recipient.IsRemote() || recipient.Id == actor.Id {
		return
	}
	data, err := json.Marshal(payload)
	if err == nil {
		err = s.store.InsertNotification(ctx, &domain.Notification{
			RecipientId: recipient.Id,
			Type:        kind,
			ActorRef:    s.resolver.AuthorRef(actor),
			Data:        data,
		})
	}
	if err != nil {
		log.Error().Err(err).Str("recipient", recipient.Id.String()).Str("kind", kind).Msg("Could not notify author")
	}
}

func (s *Server) handleListComments(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	p, ok := parsePage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if author.IsRemote() {
		res, err := s.gateway.Proxy(ctx, author, "/posts/"+postExtern(post)+"/comments", p.query())
		if err != nil {
			abortWithError(c, err)
			return
		}
		body, err := federation.Reshape(res.Body, "comments", "comments")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(res.Status, "application/json", body)
		return
	}

	if err := s.graph.CanRead(ctx, middleware.CurrentAuthor(c), post, author); err != nil {
		abortWithError(c, err)
		return
	}
	total, err := s.store.CountCommentsByPost(ctx, post.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	limit, offset, ok := p.window(c, total)
	if !ok {
		return
	}
	comments, err := s.store.ReadCommentsByPost(ctx, post.Id, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	postRef := s.postRef(post, author)
	items, err := s.commentsJSON(ctx, comments, postRef)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":  "comments",
		"page":  p.number,
		"size":  p.size,
		"post":  postRef,
		"id":    postRef + "/comments",
		"items": items,
	})
}

type commentRequest struct {
	Comment     string `json:"comment" binding:"required"`
	ContentType string `json:"contentType"`
}

// handleCreateComment stores the caller's comment. On a remote-owned post
// the comment is delivered to the owning peer first and kept locally only
// once the peer took it.
func (s *Server) handleCreateComment(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	caller := middleware.CurrentAuthor(c)
	ctx := c.Request.Context()

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ct, ok := domain.ParseContentType(lo.Ternary(req.ContentType == "", domain.ContentPlain.Label(), req.ContentType))
	if !ok {
		badRequest(c, "unknown content type "+req.ContentType)
		return
	}
	if err := s.graph.CanRead(ctx, caller, post, author); err != nil {
		abortWithError(c, err)
		return
	}

	comment := &domain.Comment{
		Id:          uuid.New(),
		PostId:      post.Id,
		AuthorId:    caller.Id,
		Comment:     req.Comment,
		ContentType: ct.Label(),
		Published:   time.Now().UTC(),
	}
	postRef := s.postRef(post, author)

	if author.IsRemote() {
		if _, err := s.gateway.SendComment(ctx, comment, caller, author, postRef); err != nil {
			abortWithError(c, err)
			return
		}
		if _, err := s.store.InsertComment(ctx, comment); err != nil {
			abortWithError(c, errors.Wrap(err, "keep delivered comment"))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Comment delivered to remote author"})
		return
	}

	if _, err := s.store.InsertComment(ctx, comment); err != nil {
		abortWithError(c, err)
		return
	}
	payload := s.resolver.CommentJSON(comment, postRef, caller)
	s.notify(ctx, author, caller, "comment", payload)
	c.JSON(http.StatusCreated, payload)
}
