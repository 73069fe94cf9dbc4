package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// foreignParam is the catch-all foreign reference, still percent-encoded
// when the client encoded it.
func foreignParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("foreign"), "/")
}

// resolveForeign looks up the author a foreign reference names. Only this
// node and registered peers are accepted.
func (s *Server) resolveForeign(ctx context.Context, ref string) (*domain.Author, error) {
	res := s.resolver.Resolve(ref, federation.Strict)
	switch res.Kind {
	case federation.Local:
		id, err := uuid.Parse(res.Id)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrNotFound, "author %s", res.Id)
		}
		return s.store.ReadAuthorById(ctx, id)
	case federation.Remote:
		return s.store.ReadRemoteAuthor(ctx, res.Peer.Id, res.Id)
	default:
		return nil, errors.Wrapf(domain.ErrNotFound, "unknown author reference %s", ref)
	}
}

func (s *Server) handleListFollowers(c *gin.Context) {
	author := targetAuthor(c)
	ctx := c.Request.Context()

	if author.IsRemote() {
		res, err := s.gateway.Proxy(ctx, author, "/followers", nil)
		if err != nil {
			abortWithError(c, err)
			return
		}
		body, err := federation.Reshape(res.Body, "followers", "followers")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(res.Status, "application/json", body)
		return
	}

	followers, err := s.graph.Followers(ctx, author.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "followers", "items": s.authorsJSON(followers)})
}

// handleCheckFollower answers 200 when the foreign author follows :id and
// 404 otherwise.
func (s *Server) handleCheckFollower(c *gin.Context) {
	author := targetAuthor(c)
	ctx := c.Request.Context()
	ref := foreignParam(c)

	if author.IsRemote() {
		decoded, err := url.PathUnescape(ref)
		if err != nil {
			abortWithError(c, errors.Wrap(domain.ErrNotFound, "malformed foreign reference"))
			return
		}
		res, err := s.gateway.Proxy(ctx, author, "/followers/"+federation.Encode(decoded), nil)
		if err != nil {
			abortWithError(c, err)
			return
		}
		respondRemote(c, res)
		return
	}

	follower, err := s.resolveForeign(ctx, ref)
	if err != nil {
		abortWithError(c, err)
		return
	}
	followed, err := s.graph.IsFollowedBy(ctx, author.Id, follower.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !followed {
		abortWithError(c, errors.Wrap(domain.ErrNotFound, "not a follower"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "is a follower"})
}

// handleAcceptFollower records foreign -> :id. The owner of :id accepts a
// follow this way; accepting twice is a conflict. Callers that are not a
// local author, anonymous or peer, get 403. When :id is remote-cached the
// caller follows it by naming themselves as foreign.
func (s *Server) handleAcceptFollower(c *gin.Context) {
	author := targetAuthor(c)
	if author.IsRemote() {
		s.followRemote(c, author)
		return
	}
	if !requireOwner(c, author) {
		return
	}
	ctx := c.Request.Context()

	follower, err := s.resolveForeign(ctx, foreignParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if follower.Id == author.Id {
		badRequest(c, "an author cannot follow itself")
		return
	}
	if err := s.graph.RequestFollow(ctx, follower.Id, author.Id); err != nil {
		abortWithError(c, err)
		return
	}
	log.Info().Str("author", author.Id.String()).Str("follower", follower.Id.String()).
		Bool("remote", follower.IsRemote()).Msg("Follow accepted")
	c.JSON(http.StatusOK, gin.H{"message": "Followed " + lo.Ternary(follower.IsRemote(), "remote", "local") + " author"})
}

func (s *Server) followRemote(c *gin.Context, target *domain.Author) {
	ctx := c.Request.Context()
	caller := middleware.CurrentAuthor(c)
	if caller == nil {
		abortWithError(c, errors.Wrap(domain.ErrForbidden, "only local authors can follow"))
		return
	}
	follower, err := s.resolveForeign(ctx, foreignParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if follower.Id != caller.Id {
		abortWithError(c, errors.Wrap(domain.ErrForbidden, "can only follow as yourself"))
		return
	}
	if _, err := s.gateway.SendFollow(ctx, caller, target); err != nil {
		abortWithError(c, err)
		return
	}
	log.Info().Str("author", target.Id.String()).Str("follower", caller.Id.String()).Msg("Follow sent")
	c.JSON(http.StatusOK, gin.H{"message": "Follow request sent"})
}

func (s *Server) handleRemoveFollower(c *gin.Context) {
	author := targetAuthor(c)
	if !requireOwner(c, author) {
		return
	}
	ctx := c.Request.Context()

	follower, err := s.resolveForeign(ctx, foreignParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.graph.RemoveFollower(ctx, author.Id, follower.Id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Follower removed"})
}

// handleDismissRequest drops the caller's follow-request notification raised
// by the given actor reference.
func (s *Server) handleDismissRequest(c *gin.Context) {
	actorRef, err := url.PathUnescape(foreignParam(c))
	if err != nil {
		badRequest(c, "malformed actor reference")
		return
	}
	caller := middleware.CurrentAuthor(c)
	if err := s.store.DeleteFollowRequest(c.Request.Context(), caller.Id, actorRef); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request dismissed"})
}
