package web

import (
	"net/http"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/middleware"
	"github.com/deemkeen/copse/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	targetAuthorKey = "copse.target.author"
	targetPostKey   = "copse.target.post"
)

// loadAuthor resolves :id to a stored author, local or remote-cached.
func (s *Server) loadAuthor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.Wrapf(domain.ErrNotFound, "author %s", c.Param("id")))
		return
	}
	author, err := s.store.ReadAuthorById(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Set(targetAuthorKey, author)
}

func targetAuthor(c *gin.Context) *domain.Author {
	return c.MustGet(targetAuthorKey).(*domain.Author)
}

// requireOwner answers 403 unless the caller is the local author a.
func requireOwner(c *gin.Context, a *domain.Author) bool {
	caller := middleware.CurrentAuthor(c)
	if a.IsRemote() || caller == nil || caller.Id != a.Id {
		abortWithError(c, errors.Wrapf(domain.ErrForbidden, "must be authenticated as author %s", a.Id))
		return false
	}
	return true
}

func (s *Server) authorsJSON(authors []domain.Author) []federation.AuthorJSON {
	return lo.Map(authors, func(a domain.Author, _ int) federation.AuthorJSON {
		return s.resolver.AuthorJSON(&a)
	})
}

type signupRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,min=8"`
	Github   string `json:"github"`
}

func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	hash, err := util.HashPassword(req.Password)
	if err != nil {
		abortWithError(c, errors.Wrap(err, "hash password"))
		return
	}

	author := &domain.Author{
		Username:     req.Username,
		PasswordHash: hash,
		Github:       req.Github,
		IsApproved:   s.conf.Conf.AutoApprove,
	}
	if err := s.store.CreateLocalAuthor(c.Request.Context(), author); err != nil {
		abortWithError(c, err)
		return
	}
	log.Info().Str("username", author.Username).Bool("approved", author.IsApproved).Msg("Signup: author created")
	c.JSON(http.StatusCreated, s.resolver.AuthorJSON(author))
}

func (s *Server) handleListAuthors(c *gin.Context) {
	p, ok := parsePage(c)
	if !ok {
		return
	}
	_, includeRemote := c.GetQuery("local")
	ctx := c.Request.Context()

	total, err := s.store.CountAuthors(ctx, includeRemote)
	if err != nil {
		abortWithError(c, err)
		return
	}
	limit, offset, ok := p.window(c, total)
	if !ok {
		return
	}
	authors, err := s.store.ReadAuthors(ctx, includeRemote, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "authors", "items": s.authorsJSON(authors)})
}

// handleGetAuthor serves local authors directly and proxies remote-cached
// ones to their peer, refreshing the cached display name on the way.
func (s *Server) handleGetAuthor(c *gin.Context) {
	author := targetAuthor(c)
	if !author.IsRemote() {
		c.JSON(http.StatusOK, s.resolver.AuthorJSON(author))
		return
	}

	res, err := s.gateway.ProxyAuthor(c.Request.Context(), author)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var profile struct {
		DisplayName string `json:"displayName"`
	}
	if json.Unmarshal(res.Body, &profile) == nil && profile.DisplayName != "" && profile.DisplayName != author.RemoteName {
		if err := s.store.RefreshRemoteName(c.Request.Context(), author.Id, profile.DisplayName); err != nil {
			log.Warn().Err(err).Str("author", author.Id.String()).Msg("Could not refresh remote name")
		}
	}
	respondRemote(c, res)
}

type profileRequest struct {
	Github       *string `json:"github"`
	ProfileImage *string `json:"profileImage"`
}

func (s *Server) handleUpdateAuthor(c *gin.Context) {
	author := targetAuthor(c)
	if !requireOwner(c, author) {
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Github != nil {
		author.Github = *req.Github
	}
	if req.ProfileImage != nil {
		author.ProfileImage = *req.ProfileImage
	}
	if err := s.store.UpdateAuthorProfile(c.Request.Context(), author.Id, author.Github, author.ProfileImage); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.resolver.AuthorJSON(author))
}

func (s *Server) handleListFollowing(c *gin.Context) {
	following, err := s.graph.Following(c.Request.Context(), targetAuthor(c).Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "following", "items": s.authorsJSON(following)})
}

func (s *Server) handleListFriends(c *gin.Context) {
	friends, err := s.graph.Friends(c.Request.Context(), targetAuthor(c).Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "friends", "items": s.authorsJSON(friends)})
}
