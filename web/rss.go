package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deemkeen/copse/db"
	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog/log"
)

const feedLimit = 50

// buildFeed renders the latest public posts written on this node as RSS,
// optionally narrowed to one local author.
func (s *Server) buildFeed(ctx context.Context, username string) (string, error) {
	filter := db.PostFilter{Visibilities: []domain.Visibility{domain.VisibilityPublic}, LocalOnly: true}
	title := fmt.Sprintf("All %s posts", util.Name)
	link := s.conf.ApiBaseURL() + "feed"
	createdBy := "everyone"

	if username != "" {
		author, err := s.store.ReadAuthorByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		filter.AuthorId = &author.Id
		title = fmt.Sprintf("%s posts - %s", util.Name, author.Username)
		link += "?author=" + author.Username
		createdBy = author.Username
	}

	posts, err := s.store.ReadPosts(ctx, filter, feedLimit, 0)
	if err != nil {
		return "", err
	}
	items, err := s.postsJSON(ctx, posts)
	if err != nil {
		return "", err
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "public posts of " + s.resolver.Self(),
		Author:      &feeds.Author{Name: createdBy},
		Created:     time.Now(),
	}
	for _, p := range items {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          p.Id,
			Title:       p.Title,
			Link:        &feeds.Link{Href: p.Id},
			Description: p.Description,
			Content:     p.Content,
			Author:      &feeds.Author{Name: p.Author.DisplayName},
			Created:     p.Published,
		})
	}
	return feed.ToRss()
}

func (s *Server) handleFeed(c *gin.Context) {
	rss, err := s.buildFeed(c.Request.Context(), c.Query("author"))
	if err != nil {
		log.Debug().Err(err).Str("author", c.Query("author")).Msg("Feed not built")
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
}
