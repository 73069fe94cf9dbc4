package web

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/deemkeen/copse/domain"
)

func TestCommentOnLocalPost(t *testing.T) {
	n := newTestNode(t)
	alice := n.author(t, "alice")
	bob := n.author(t, "bob")
	ref := n.createPost(t, as(alice), authorPath(alice),
		`{"title":"t","contentType":"text/plain","content":"c","visibility":"PUBLIC"}`)

	w := n.do(t, "POST", postPath(ref)+"/comments", `{"comment":"nice","contentType":"text/markdown"}`, as(bob))
	expectStatus(t, w, http.StatusCreated)
	comment := decodeBody(t, w)
	if !strings.HasPrefix(comment["id"].(string), ref+"/comments/") {
		t.Errorf("Expected comment under %s, got %v", ref, comment["id"])
	}
	expectStatus(t, n.do(t, "POST", postPath(ref)+"/comments", `{"contentType":"text/plain"}`, as(bob)), http.StatusBadRequest)
	expectStatus(t, n.do(t, "POST", postPath(ref)+"/comments", `{"comment":"x","contentType":"text/html"}`, as(bob)), http.StatusBadRequest)

	w = n.do(t, "GET", postPath(ref)+"/comments?page=1&size=5", "", nil)
	expectStatus(t, w, http.StatusOK)
	page := decodeBody(t, w)
	if page["type"] != "comments" || page["post"] != ref || page["id"] != ref+"/comments" {
		t.Errorf("Unexpected comments envelope: %v", page)
	}
	if got := len(items(t, w)); got != 1 {
		t.Errorf("Expected 1 comment, got %d", got)
	}

	w = n.do(t, "GET", postPath(ref), "", nil)
	if decodeBody(t, w)["count"] != float64(1) {
		t.Errorf("Expected comment count 1: %s", w.Body.String())
	}

	w = n.do(t, "GET", authorPath(alice)+"/inbox?page=1&size=5", "", as(alice))
	if got := len(items(t, w)); got != 1 {
		t.Errorf("Expected alice notified of the comment, got %d", got)
	}
}

func TestCommentOnForbiddenPost(t *testing.T) {
	n := newTestNode(t)
	alice := n.author(t, "alice")
	bob := n.author(t, "bob")
	ref := n.createPost(t, as(alice), authorPath(alice),
		`{"title":"t","contentType":"text/plain","content":"c","visibility":"FRIENDS"}`)

	expectStatus(t, n.do(t, "POST", postPath(ref)+"/comments", `{"comment":"hi"}`, as(bob)), http.StatusForbidden)
	expectStatus(t, n.do(t, "GET", postPath(ref)+"/comments?page=1&size=5", "", as(bob)), http.StatusForbidden)
}

// materializeRemotePost has the peer push a post by x1 into alice's inbox.
func (n *testNode) materializeRemotePost(t *testing.T, alice, x *domain.Author, ext string) *domain.Post {
	t.Helper()
	xRef := n.remote.base() + "authors/" + x.ExternId
	payload := `{"type":"post","id":"` + xRef + `/posts/` + ext + `","title":"remote","contentType":"text/plain",` +
		`"content":"c","visibility":"PUBLIC","author":{"id":"` + xRef + `"}}`
	expectStatus(t, n.do(t, "POST", authorPath(alice)+"/inbox", payload, asPeer), http.StatusOK)

	post, err := n.store.ReadPostByExternId(context.Background(), x.Id, ext)
	if err != nil {
		t.Fatalf("Expected the post to be materialized: %v", err)
	}
	return post
}

func TestCommentOnRemotePostIsDelivered(t *testing.T) {
	n := newTestNode(t)
	alice := n.author(t, "alice")
	x := n.remoteAuthor(t, "x1")
	post := n.materializeRemotePost(t, alice, x, "p1")
	n.remote.status.Store(http.StatusCreated)

	w := n.do(t, "POST", authorPath(x)+"/posts/p1/comments", `{"comment":"from afar"}`, as(alice))
	expectStatus(t, w, http.StatusCreated)
	if got := n.remote.path.Load(); got != "/api/authors/x1/inbox" {
		t.Errorf("Expected delivery to x1's inbox, got %v", got)
	}
	body := n.remote.body.Load().(string)
	if !strings.Contains(body, `"type":"comment"`) || !strings.Contains(body, n.remote.base()+"authors/x1/posts/p1/comments/") {
		t.Errorf("Unexpected delivered comment: %s", body)
	}

	comments, err := n.store.ReadCommentsByPost(context.Background(), post.Id, 10, 0)
	if err != nil || len(comments) != 1 {
		t.Fatalf("Expected the delivered comment kept locally, got %v, %v", comments, err)
	}
	if !strings.Contains(body, comments[0].Id.String()) {
		t.Errorf("Expected the peer and the local copy to share id %s", comments[0].Id)
	}
}

func TestCommentOnRemotePostNotKeptWhenPeerFails(t *testing.T) {
	n := newTestNode(t)
	alice := n.author(t, "alice")
	x := n.remoteAuthor(t, "x1")
	post := n.materializeRemotePost(t, alice, x, "p1")
	n.remote.status.Store(http.StatusInternalServerError)
	n.remote.answer.Store(`{"error":"boom"}`)

	expectStatus(t, n.do(t, "POST", authorPath(x)+"/posts/p1/comments", `{"comment":"lost"}`, as(alice)), http.StatusInternalServerError)
	n.remote.status.Store(http.StatusOK)

	if count, _ := n.store.CountCommentsByPost(context.Background(), post.Id); count != 0 {
		t.Errorf("Expected no local comment after a failed delivery, got %d", count)
	}
}

func TestRemoteCommentsProxied(t *testing.T) {
	n := newTestNode(t)
	alice := n.author(t, "alice")
	x := n.remoteAuthor(t, "x1")
	n.materializeRemotePost(t, alice, x, "p1")
	n.remote.answer.Store(`[{"type":"comment","comment":"remote"}]`)

	w := n.do(t, "GET", authorPath(x)+"/posts/p1/comments?page=1&size=5", "", nil)
	expectStatus(t, w, http.StatusOK)
	if got := n.remote.path.Load(); got != "/api/authors/x1/posts/p1/comments?page=1&size=5" {
		t.Errorf("Unexpected proxied path %v", got)
	}
	if got := len(items(t, w)); got != 1 {
		t.Errorf("Expected bare array wrapped into items, got %d", got)
	}
}
