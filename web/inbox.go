package web

import (
	"net/http"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/middleware"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// handlePostInbox takes an inbox event for :id. Events for local authors
// are ingested here; events a local author addresses to a remote-cached
// author are relayed to the owning peer.
func (s *Server) handlePostInbox(c *gin.Context) {
	recipient := targetAuthor(c)
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		badRequest(c, "could not read body")
		return
	}

	if recipient.IsRemote() {
		sender := middleware.CurrentAuthor(c)
		if sender == nil {
			abortWithError(c, errors.Wrap(domain.ErrForbidden, "only local authors can write to a remote inbox"))
			return
		}
		res, err := s.gateway.RelayInbox(ctx, sender, recipient, raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		respondRemote(c, res)
		return
	}

	if err := s.inbox.Ingest(ctx, recipient, raw); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event accepted"})
}

func (s *Server) handleReadInbox(c *gin.Context) {
	author := targetAuthor(c)
	if !requireOwner(c, author) {
		return
	}
	p, ok := parsePage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	total, err := s.store.CountNotifications(ctx, author.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	limit, offset, ok := p.window(c, total)
	if !ok {
		return
	}
	notifications, err := s.store.ReadNotifications(ctx, author.Id, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":   "inbox",
		"author": s.resolver.AuthorRef(author),
		"items": lo.Map(notifications, func(n domain.Notification, _ int) any {
			return n.Data
		}),
	})
}

// handleClearInbox answers 204 when there was nothing to clear.
func (s *Server) handleClearInbox(c *gin.Context) {
	author := targetAuthor(c)
	if !requireOwner(c, author) {
		return
	}
	n, err := s.store.ClearNotifications(c.Request.Context(), author.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if n == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Inbox cleared"})
}
