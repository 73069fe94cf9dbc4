package web

import (
	"github.com/deemkeen/copse/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router builds the HTTP API. Path values are kept percent-encoded so a
// foreign reference embedded as a path segment reaches the resolver exactly
// as sent and is decoded once there.
func (s *Server) Router() *gin.Engine {
	g := gin.New()
	g.UseRawPath = true
	g.UnescapePathValues = false

	g.Use(gin.Recovery(), RequestLogger())
	g.Use(gzip.Gzip(gzip.DefaultCompression))
	if s.conf.Conf.RateLimit > 0 {
		g.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(s.conf.Conf.RateLimit), s.conf.Conf.RateBurst)))
	}
	if s.conf.Conf.MaxBodyBytes > 0 {
		g.Use(MaxBytesMiddleware(s.conf.Conf.MaxBodyBytes))
	}
	g.Use(middleware.BasicAuth(s.registry, s.store))

	authorOnly := middleware.RequireAuthor()

	api := g.Group("/api")
	api.POST("/signup", s.handleSignup)
	api.GET("/posts/", s.handleGlobalPosts)
	api.GET("/feed", s.handleFeed)
	api.DELETE("/requests/*foreign", authorOnly, s.handleDismissRequest)

	api.GET("/authors/", s.handleListAuthors)

	a := api.Group("/authors/:id", s.loadAuthor)
	a.GET("", s.handleGetAuthor)
	a.GET("/", s.handleGetAuthor)
	a.PUT("", authorOnly, s.handleUpdateAuthor)
	a.PUT("/", authorOnly, s.handleUpdateAuthor)

	a.GET("/followers", s.handleListFollowers)
	a.GET("/followers/*foreign", s.handleCheckFollower)
	a.PUT("/followers/*foreign", s.handleAcceptFollower)
	a.DELETE("/followers/*foreign", authorOnly, s.handleRemoveFollower)
	a.GET("/following", s.handleListFollowing)
	a.GET("/friends", s.handleListFriends)
	a.GET("/liked", s.handleListLiked)

	a.GET("/inbox", authorOnly, s.handleReadInbox)
	a.POST("/inbox", middleware.RequireCaller(), s.handlePostInbox)
	a.DELETE("/inbox", authorOnly, s.handleClearInbox)

	a.GET("/posts/", s.handleListPosts)
	a.POST("/posts/", authorOnly, s.handleCreatePost)

	p := a.Group("/posts/:post", s.loadPost)
	p.GET("", s.handleGetPost)
	p.PUT("", authorOnly, s.handleUpdatePost)
	p.DELETE("", authorOnly, s.handleDeletePost)
	p.GET("/image", s.handlePostImage)
	p.GET("/comments", s.handleListComments)
	p.POST("/comments", authorOnly, s.handleCreateComment)
	p.GET("/likes", s.handleListPostLikes)
	p.POST("/likes", authorOnly, s.handleLikePost)
	p.GET("/comments/:comment/likes", s.handleListCommentLikes)
	p.POST("/comments/:comment/likes", authorOnly, s.handleLikeComment)

	return g
}
