package web

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/deemkeen/copse/db"
	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// loadPost resolves :post under the already loaded author, by local id or,
// for materialized remote posts, by extern id.
func (s *Server) loadPost(c *gin.Context) {
	author := targetAuthor(c)
	ctx := c.Request.Context()
	param := c.Param("post")

	var post *domain.Post
	var err error
	if id, perr := uuid.Parse(param); perr == nil {
		post, err = s.store.ReadPostById(ctx, id)
		if err != nil && errors.Is(err, domain.ErrNotFound) && author.IsRemote() {
			post, err = s.store.ReadPostByExternId(ctx, author.Id, param)
		}
	} else {
		post, err = s.store.ReadPostByExternId(ctx, author.Id, param)
	}
	if err == nil && post.AuthorId != author.Id {
		err = errors.Wrapf(domain.ErrNotFound, "post %s of author %s", param, author.Id)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Set(targetPostKey, post)
}

func targetPost(c *gin.Context) *domain.Post {
	return c.MustGet(targetPostKey).(*domain.Post)
}

// postExtern is the id the owning node knows the post by.
func postExtern(p *domain.Post) string {
	return lo.FromPtrOr(p.ExternId, p.Id.String())
}

func (s *Server) postRef(p *domain.Post, author *domain.Author) string {
	return s.resolver.PostRef(s.resolver.AuthorRef(author), postExtern(p))
}

// postsJSON renders posts, looking each distinct author up once.
func (s *Server) postsJSON(ctx context.Context, posts []domain.Post) ([]federation.PostJSON, error) {
	authors := map[uuid.UUID]*domain.Author{}
	items := make([]federation.PostJSON, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		author, ok := authors[p.AuthorId]
		if !ok {
			var err error
			if author, err = s.store.ReadAuthorById(ctx, p.AuthorId); err != nil {
				return nil, err
			}
			authors[p.AuthorId] = author
		}
		items = append(items, s.resolver.PostJSON(p, author))
	}
	return items, nil
}

func (s *Server) listPosts(c *gin.Context, p page, filter db.PostFilter) {
	ctx := c.Request.Context()
	total, err := s.store.CountPosts(ctx, filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	limit, offset, ok := p.window(c, total)
	if !ok {
		return
	}
	posts, err := s.store.ReadPosts(ctx, filter, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items, err := s.postsJSON(ctx, posts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "posts", "items": items})
}

// handleListPosts lists what the caller may see of :id's posts. Posts of a
// remote-cached author are read from the owning peer.
func (s *Server) handleListPosts(c *gin.Context) {
	author := targetAuthor(c)
	p, ok := parsePage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if author.IsRemote() {
		res, err := s.gateway.Proxy(ctx, author, "/posts/", p.query())
		if err != nil {
			abortWithError(c, err)
			return
		}
		body, err := federation.Reshape(res.Body, "posts", "posts")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(res.Status, "application/json", body)
		return
	}

	visibilities, err := s.graph.ListVisibilities(ctx, middleware.CurrentAuthor(c), author)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.listPosts(c, p, db.PostFilter{AuthorId: &author.Id, Visibilities: visibilities})
}

// handleGlobalPosts is the node-wide stream. Anonymous and peer callers see
// public posts; an author also sees their own and their friends' posts.
func (s *Server) handleGlobalPosts(c *gin.Context) {
	p, ok := parsePageOr(c, 1, 40)
	if !ok {
		return
	}
	filter := db.PostFilter{Visibilities: []domain.Visibility{domain.VisibilityPublic}}
	if viewer := middleware.CurrentAuthor(c); viewer != nil {
		filter = db.PostFilter{Viewer: &viewer.Id}
	}
	s.listPosts(c, p, filter)
}

type postRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Source      *string `json:"source"`
	Origin      *string `json:"origin"`
	ContentType *string `json:"contentType"`
	Content     *string `json:"content"`
	Visibility  *string `json:"visibility"`
}

// apply copies the present fields onto p, rejecting unknown labels.
func (r *postRequest) apply(p *domain.Post) error {
	if r.ContentType != nil {
		ct, ok := domain.ParseContentType(*r.ContentType)
		if !ok {
			return errors.Wrapf(domain.ErrMalformed, "content type %q", *r.ContentType)
		}
		p.ContentType = ct
	}
	if r.Visibility != nil {
		v, ok := domain.ParseVisibility(*r.Visibility)
		if !ok {
			return errors.Wrapf(domain.ErrMalformed, "visibility %q", *r.Visibility)
		}
		p.Visibility = v
	}
	if p.ContentType.IsImage() && r.Content != nil {
		if _, err := base64.StdEncoding.DecodeString(*r.Content); err != nil {
			return errors.Wrap(domain.ErrMalformed, "image content is not base64")
		}
	}
	p.Title = lo.FromPtrOr(r.Title, p.Title)
	p.Description = lo.FromPtrOr(r.Description, p.Description)
	p.Source = lo.FromPtrOr(r.Source, p.Source)
	p.Origin = lo.FromPtrOr(r.Origin, p.Origin)
	p.Content = lo.FromPtrOr(r.Content, p.Content)
	return nil
}

func (s *Server) handleCreatePost(c *gin.Context) {
	author := targetAuthor(c)
	if !requireOwner(c, author) {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Title == nil || req.ContentType == nil || req.Content == nil || req.Visibility == nil {
		badRequest(c, "title, contentType, content and visibility are required")
		return
	}

	post := &domain.Post{AuthorId: author.Id}
	if err := req.apply(post); err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := s.store.InsertPost(c.Request.Context(), post); err != nil {
		abortWithError(c, err)
		return
	}
	log.Info().Str("author", author.Username).Str("post", post.Id.String()).
		Str("visibility", post.Visibility.Label()).Msg("Post created")
	c.JSON(http.StatusCreated, s.resolver.PostJSON(post, author))
}

func (s *Server) handleGetPost(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	if err := s.graph.CanRead(c.Request.Context(), middleware.CurrentAuthor(c), post, author); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.resolver.PostJSON(post, author))
}

// handleUpdatePost applies a partial update. Only local posts can change
// here; materialized copies follow their owning peer.
func (s *Server) handleUpdatePost(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	if !requireOwner(c, author) {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.apply(post); err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.store.UpdatePost(c.Request.Context(), post); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.resolver.PostJSON(post, author))
}

func (s *Server) handleDeletePost(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	if !requireOwner(c, author) {
		return
	}
	if err := s.store.DeletePost(c.Request.Context(), post.Id); err != nil {
		abortWithError(c, err)
		return
	}
	log.Info().Str("author", author.Username).Str("post", post.Id.String()).Msg("Post deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// handlePostImage serves an image post's decoded bytes.
func (s *Server) handlePostImage(c *gin.Context) {
	author, post := targetAuthor(c), targetPost(c)
	if err := s.graph.CanRead(c.Request.Context(), middleware.CurrentAuthor(c), post, author); err != nil {
		abortWithError(c, err)
		return
	}
	if !post.ContentType.IsImage() {
		abortWithError(c, errors.Wrap(domain.ErrNotFound, "post is not an image"))
		return
	}
	img, err := base64.StdEncoding.DecodeString(post.Content)
	if err != nil {
		abortWithError(c, errors.Wrapf(err, "decode image of post %s", post.Id))
		return
	}
	c.Data(http.StatusOK, strings.TrimSuffix(post.ContentType.Label(), ";base64"), img)
}
