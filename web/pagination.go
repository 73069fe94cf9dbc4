package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type page struct {
	number int
	size   int
}

// parsePage reads the mandatory page and size query parameters, both
// positive integers. It answers 400 itself when they are missing or invalid.
func parsePage(c *gin.Context) (page, bool) {
	return parsePageOr(c, 0, 0)
}

// parsePageOr is parsePage with defaults for absent parameters. A zero
// default makes the parameter mandatory.
func parsePageOr(c *gin.Context, defNumber, defSize int) (page, bool) {
	number, ok := positiveQuery(c, "page", defNumber)
	if !ok {
		return page{}, false
	}
	size, ok := positiveQuery(c, "size", defSize)
	if !ok {
		return page{}, false
	}
	return page{number: number, size: size}, true
}

func positiveQuery(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		if def > 0 {
			return def, true
		}
		badRequest(c, "page and size must be provided")
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	if n < 1 {
		badRequest(c, name+" must be greater than 0")
		return 0, false
	}
	return n, true
}

// window turns the page into limit and offset for a listing of total items.
// There is always at least one (possibly empty) page; asking past the last
// one answers 404.
func (p page) window(c *gin.Context, total int) (limit, offset int, ok bool) {
	pages := max(1, (total+p.size-1)/p.size)
	if p.number > pages {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return 0, 0, false
	}
	return p.size, (p.number - 1) * p.size, true
}

// query renders the page back for a proxied read.
func (p page) query() map[string][]string {
	return map[string][]string{"page": {strconv.Itoa(p.number)}, "size": {strconv.Itoa(p.size)}}
}
