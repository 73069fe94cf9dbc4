package web

import (
	"net/http"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/federation"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func statusOf(err error) int {
	var upstream *federation.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return upstream.Status
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotAcceptable
	case errors.Is(err, domain.ErrMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError answers err and stops the handler chain. A peer's own
// answer is passed through unchanged.
func abortWithError(c *gin.Context, err error) {
	var upstream *federation.UpstreamError
	if errors.As(err, &upstream) && len(upstream.Body) > 0 {
		c.Data(upstream.Status, contentTypeOr(upstream.ContentType), upstream.Body)
		c.Abort()
		return
	}

	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondRemote relays a peer's successful answer.
func respondRemote(c *gin.Context, res *federation.RemoteResult) {
	c.Data(res.Status, contentTypeOr(res.ContentType), res.Body)
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
