package web

import (
	"context"
	"net/http"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

func (s *Server) likesJSON(ctx context.Context, likes []domain.Like, objectRef string) ([]federation.LikeJSON, error) {
	items := make([]federation.LikeJSON, 0, len(likes))
	for _, l := range likes {
		liker, err := s.store.ReadAuthorById(ctx, l.AuthorId)
		if err != nil {
			return nil, err
		}
		items = append(items, s.resolver.LikeJSON(liker, l.ObjectType, objectRef))
	}
	return items, nil
}

func (s *Server) proxyLikes(c *gin.Context, owner *domain.Author, subpath string) {
	res, err := s.gateway.Proxy(c.Request.Context(), owner, subpath, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}
	body, err := federation.Reshape(res.Body, "likes", "")
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(res.Status, "application/json", body)
}

func (s *Server) listLikes(c *gin.Context, objectType domain.ObjectType, objectId, objectRef string) {
	ctx := c.Request.Context()
	likes, err := s.store.ReadLikesByObject(ctx, objectType, objectId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items, err := s.likesJSON(ctx, likes, objectRef)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "likes", "items": items})
}

// like records the caller's like on a local object, or delivers it to the
// peer owning the object.
func (s *Server) like(c *gin.Context, owner *domain.Author, objectType domain.ObjectType, objectId, objectRef string) {
	caller := middleware.CurrentAuthor(c)
	ctx := c.Request.Context()

	if owner.IsRemote() {
		res, err := s.gateway.SendLike(ctx, caller, owner, objectType, objectRef)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(res.Status, gin.H{"message": "Like delivered to remote author"})
		return
	}

	created, err := s.store.InsertLike(ctx, &domain.Like{AuthorId: caller.Id, ObjectType: objectType, ObjectId: objectId})
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !created {
		abortWithError(c, errors.Wrapf(domain.ErrConflict, "%s already liked", objectType))
		return
	}
	s.notify(ctx, owner, caller, "like", s.resolver.LikeJSON(caller, objectType, objectRef))
	c.JSON(http.StatusCreated, gin.H{"message": "Liked"})
}

func (s *Server) handleListPostLikes(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	if author.IsRemote() {
		s.proxyLikes(c, author, "/posts/"+postExtern(post)+"/likes")
		return
	}
	if err := s.graph.CanRead(c.Request.Context(), middleware.CurrentAuthor(c), post, author); err != nil {
		abortWithError(c, err)
		return
	}
	s.listLikes(c, domain.ObjectPost, post.Id.String(), s.postRef(post, author))
}

func (s *Server) handleLikePost(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	if err := s.graph.CanRead(c.Request.Context(), middleware.CurrentAuthor(c), post, author); err != nil {
		abortWithError(c, err)
		return
	}
	s.like(c, author, domain.ObjectPost, post.Id.String(), s.postRef(post, author))
}

// loadComment resolves :comment on the loaded post along with its author.
func (s *Server) loadComment(c *gin.Context) (*domain.Comment, *domain.Author, bool) {
	post := targetPost(c)
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Param("comment"))
	if err != nil {
		abortWithError(c, errors.Wrapf(domain.ErrNotFound, "comment %s", c.Param("comment")))
		return nil, nil, false
	}
	comment, err := s.store.ReadCommentById(ctx, id)
	if err == nil && comment.PostId != post.Id {
		err = errors.Wrapf(domain.ErrNotFound, "comment %s on post %s", id, post.Id)
	}
	if err != nil {
		abortWithError(c, err)
		return nil, nil, false
	}
	commenter, err := s.store.ReadAuthorById(ctx, comment.AuthorId)
	if err != nil {
		abortWithError(c, err)
		return nil, nil, false
	}
	return comment, commenter, true
}

func (s *Server) handleListCommentLikes(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	comment, commenter, ok := s.loadComment(c)
	if !ok {
		return
	}
	if author.IsRemote() {
		s.proxyLikes(c, author, "/posts/"+postExtern(post)+"/comments/"+lo.FromPtrOr(comment.ExternId, comment.Id.String())+"/likes")
		return
	}
	ref := s.resolver.CommentJSON(comment, s.postRef(post, author), commenter).Id
	s.listLikes(c, domain.ObjectComment, comment.Id.String(), ref)
}

// handleLikeComment likes a comment. The comment's own author decides where
// the like goes.
func (s *Server) handleLikeComment(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	comment, commenter, ok := s.loadComment(c)
	if !ok {
		return
	}
	ref := s.resolver.CommentJSON(comment, s.postRef(post, author), commenter).Id
	s.like(c, commenter, domain.ObjectComment, comment.Id.String(), ref)
}

// handleListLiked lists everything :id has liked.
func (s *Server) handleListLiked(c *gin.Context) {
	author := targetAuthor(c)
	ctx := c.Request.Context()
	likes, err := s.store.ReadLikesByAuthor(ctx, author.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	items := make([]federation.LikeJSON, 0, len(likes))
	for _, l := range likes {
		ref, err := s.objectRef(ctx, l)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		items = append(items, s.resolver.LikeJSON(author, l.ObjectType, ref))
	}
	c.JSON(http.StatusOK, gin.H{"type": "liked", "items": items})
}

// objectRef rebuilds the canonical reference of a liked post or comment.
func (s *Server) objectRef(ctx context.Context, l domain.Like) (string, error) {
	id, err := uuid.Parse(l.ObjectId)
	if err != nil {
		return "", errors.Wrapf(domain.ErrNotFound, "liked object %s", l.ObjectId)
	}

	var comment *domain.Comment
	postId := id
	if l.ObjectType == domain.ObjectComment {
		if comment, err = s.store.ReadCommentById(ctx, id); err != nil {
			return "", err
		}
		postId = comment.PostId
	}
	post, err := s.store.ReadPostById(ctx, postId)
	if err != nil {
		return "", err
	}
	owner, err := s.store.ReadAuthorById(ctx, post.AuthorId)
	if err != nil {
		return "", err
	}
	postRef := s.postRef(post, owner)
	if comment == nil {
		return postRef, nil
	}
	return s.resolver.CommentRef(postRef, lo.FromPtrOr(comment.ExternId, comment.Id.String())), nil
}
