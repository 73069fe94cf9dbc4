package middleware

import (
	"context"
	"net/http"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	authorKey = "copse.author"
	peerKey   = "copse.peer"
)

// PeerAuthenticator checks the credentials a federation partner presents.
type PeerAuthenticator interface {
	AuthenticateInbound(username, password string) (*domain.Peer, bool)
}

// AuthorLookup finds local authors by login name.
type AuthorLookup interface {
	ReadAuthorByUsername(ctx context.Context, username string) (*domain.Author, error)
}

// BasicAuth resolves HTTP basic credentials into either a peer or an
// approved local author. Peer credentials are tried first. A request without
// credentials passes through anonymously; bad credentials are answered with
// 401 right away.
func BasicAuth(peers PeerAuthenticator, authors AuthorLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Next()
			return
		}

		if peer, ok := peers.AuthenticateInbound(username, password); ok {
			c.Set(peerKey, peer)
			c.Next()
			return
		}

		author, err := authors.ReadAuthorByUsername(c.Request.Context(), username)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			unauthorized(c, "invalid credentials")
			return
		case err != nil:
			log.Error().Err(err).Msg("Auth: author lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !util.CheckPassword(author.PasswordHash, password) {
			unauthorized(c, "invalid credentials")
			return
		}
		if !author.IsApproved {
			unauthorized(c, "account awaiting approval")
			return
		}

		c.Set(authorKey, author)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Basic realm="`+util.Name+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// CurrentAuthor is the authenticated local author, or nil.
func CurrentAuthor(c *gin.Context) *domain.Author {
	if v, ok := c.Get(authorKey); ok {
		return v.(*domain.Author)
	}
	return nil
}

// CurrentPeer is the authenticated peer, or nil.
func CurrentPeer(c *gin.Context) *domain.Peer {
	if v, ok := c.Get(peerKey); ok {
		return v.(*domain.Peer)
	}
	return nil
}

// RequireAuthor rejects requests not made by a local author.
func RequireAuthor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentAuthor(c) == nil {
			unauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// RequireCaller rejects anonymous requests; peers and local authors pass.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentAuthor(c) == nil && CurrentPeer(c) == nil {
			unauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}
