package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func pageContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", target, nil)
	return c, w
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name   string
		target string
		ok     bool
		want   page
	}{
		{"both given", "/x?page=2&size=10", true, page{number: 2, size: 10}},
		{"missing size", "/x?page=2", false, page{}},
		{"missing both", "/x", false, page{}},
		{"not a number", "/x?page=a&size=1", false, page{}},
		{"zero", "/x?page=0&size=1", false, page{}},
		{"negative size", "/x?page=1&size=-3", false, page{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := pageContext(tt.target)
			got, ok := parsePage(c)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

func TestParsePageDefaults(t *testing.T) {
	c, _ := pageContext("/x?size=5")
	p, ok := parsePageOr(c, 1, 40)
	if !ok || p.number != 1 || p.size != 5 {
		t.Errorf("Expected page 1 of size 5, got %+v (%v)", p, ok)
	}
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name       string
		p          page
		total      int
		ok         bool
		wantLimit  int
		wantOffset int
	}{
		{"first page", page{1, 10}, 25, true, 10, 0},
		{"last partial page", page{3, 10}, 25, true, 10, 20},
		{"past the end", page{4, 10}, 25, false, 0, 0},
		{"empty listing has one page", page{1, 10}, 0, true, 10, 0},
		{"empty listing second page", page{2, 10}, 0, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := pageContext("/x")
			limit, offset, ok := tt.p.window(c, tt.total)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && (limit != tt.wantLimit || offset != tt.wantOffset) {
				t.Errorf("Expected limit %d offset %d, got %d %d", tt.wantLimit, tt.wantOffset, limit, offset)
			}
			if !ok && w.Code != http.StatusNotFound {
				t.Errorf("Expected 404, got %d", w.Code)
			}
		})
	}
}
