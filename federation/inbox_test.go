package federation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/deemkeen/copse/db"
	"github.com/deemkeen/copse/domain"
	"github.com/pkg/errors"
)

var allVisibilities = []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends, domain.VisibilityUnlisted}

func TestIngestFollowFromPeer(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")

	raw := []byte(`{"type":"follow","actor":{"id":"https://P/authors/x1"}}`)
	if err := f.inbox.Ingest(ctx, a1, raw); err != nil {
		t.Fatalf("Expected follow to be accepted, got %v", err)
	}

	cached, err := f.store.ReadRemoteAuthor(ctx, f.peer.Id, "x1")
	if err != nil {
		t.Fatalf("Expected remote author to be cached: %v", err)
	}
	followed, err := f.graph.IsFollowedBy(ctx, a1.Id, cached.Id)
	if err != nil || !followed {
		t.Errorf("Expected a1 to be followed by x1, got %v, %v", followed, err)
	}

	err = f.inbox.Ingest(ctx, a1, raw)
	if Classify(err) != Conflict {
		t.Errorf("Expected repeated follow to conflict, got %v", err)
	}

	n, _ := f.store.CountNotifications(ctx, a1.Id)
	if n != 1 {
		t.Errorf("Expected 1 notification, got %d", n)
	}
}

func TestIngestFollowFromLocalAuthor(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	a2 := f.localAuthor(t, "a2")

	raw := fmt.Sprintf(`{"type":"follow","author":{"id":"%s"}}`, f.resolver.LocalAuthorRef(a2.Id))
	if err := f.inbox.Ingest(ctx, a1, []byte(raw)); err != nil {
		t.Fatalf("Expected follow to be accepted, got %v", err)
	}
	if ok, _ := f.graph.IsFollowing(ctx, a2.Id, a1.Id); !ok {
		t.Error("Expected a2 -> a1 edge")
	}

	self := fmt.Sprintf(`{"type":"follow","actor":{"id":"%s"}}`, a1.Id)
	if err := f.inbox.Ingest(ctx, a1, []byte(self)); !errors.Is(err, domain.ErrMalformed) {
		t.Errorf("Expected self follow to be malformed, got %v", err)
	}
}

func TestIngestPostIdempotent(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	x1 := f.remoteAuthor(t, "x1")

	raw := []byte(`{"type":"post","id":"https://P/authors/x1/posts/p1","title":"t","contentType":"text/markdown",
		"content":"# hi","visibility":"FRIENDS","published":"2024-03-01T10:00:00Z","author":{"id":"https://P/authors/x1"}}`)

	if err := f.inbox.Ingest(ctx, a1, raw); err != nil {
		t.Fatalf("Expected first delivery to be accepted, got %v", err)
	}
	err := f.inbox.Ingest(ctx, a1, raw)
	if Classify(err) != Conflict {
		t.Errorf("Expected second delivery to conflict, got %v", err)
	}

	n, _ := f.store.CountPosts(ctx, db.PostFilter{AuthorId: &x1.Id, Visibilities: allVisibilities})
	if n != 1 {
		t.Fatalf("Expected exactly 1 stored post, got %d", n)
	}
	p, err := f.store.ReadPostByExternId(ctx, x1.Id, "p1")
	if err != nil {
		t.Fatalf("ReadPostByExternId failed: %v", err)
	}
	if p.ContentType != domain.ContentMarkdown || p.Visibility != domain.VisibilityFriends {
		t.Errorf("Expected labels translated to codes, got %q/%q", p.ContentType, p.Visibility)
	}
	if p.Published.Year() != 2024 {
		t.Errorf("Expected published from payload, got %v", p.Published)
	}
}

func TestIngestPostRejections(t *testing.T) {
	f := newFixture(t, "https://P/")
	a1 := f.localAuthor(t, "a1")
	f.remoteAuthor(t, "x1")

	tests := []struct {
		name string
		raw  string
		want Outcome
	}{
		{
			name: "unknown author",
			raw:  `{"type":"post","id":"https://P/authors/nobody/posts/p1","contentType":"text/plain","visibility":"PUBLIC","author":{"id":"https://P/authors/nobody"}}`,
			want: NotFound,
		},
		{
			name: "unknown visibility",
			raw:  `{"type":"post","id":"https://P/authors/x1/posts/p1","contentType":"text/plain","visibility":"SECRET","author":{"id":"https://P/authors/x1"}}`,
			want: Rejected,
		},
		{
			name: "unknown content type",
			raw:  `{"type":"post","id":"https://P/authors/x1/posts/p1","contentType":"video/mp4","visibility":"PUBLIC","author":{"id":"https://P/authors/x1"}}`,
			want: Rejected,
		},
		{
			name: "missing author",
			raw:  `{"type":"post","id":"https://P/authors/x1/posts/p1","contentType":"text/plain","visibility":"PUBLIC"}`,
			want: Rejected,
		},
		{
			name: "unsupported type",
			raw:  `{"type":"share","id":"x"}`,
			want: Rejected,
		},
		{
			name: "not json",
			raw:  `{"type":`,
			want: Rejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.inbox.Ingest(context.Background(), a1, []byte(tt.raw))
			if got := Classify(err); got != tt.want {
				t.Errorf("Expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}

	n, _ := f.store.CountNotifications(context.Background(), a1.Id)
	if n != 0 {
		t.Errorf("Expected no notifications for rejected events, got %d", n)
	}
}

func TestIngestUnsupportedTypeIsUnsupported(t *testing.T) {
	f := newFixture(t, "https://P/")
	a1 := f.localAuthor(t, "a1")

	err := f.inbox.Ingest(context.Background(), a1, []byte(`{"type":"Announce"}`))
	if !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestIngestDualKeyResolution(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	x9 := f.remoteAuthor(t, "x9")

	tests := []struct {
		name   string
		author string
		postId string
	}{
		{name: "extern id under an unregistered base", author: "https://elsewhere.example/api/authors/x9", postId: "p1"},
		{name: "local id", author: x9.Id.String(), postId: "p2"},
		{name: "local id under this node", author: f.resolver.LocalAuthorRef(x9.Id), postId: "p3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := fmt.Sprintf(`{"type":"post","id":"https://P/authors/x9/posts/%s","contentType":"text/plain","visibility":"PUBLIC","author":{"id":"%s"}}`,
				tt.postId, tt.author)
			if err := f.inbox.Ingest(ctx, a1, []byte(raw)); err != nil {
				t.Fatalf("Expected accepted, got %v", err)
			}
			if _, err := f.store.ReadPostByExternId(ctx, x9.Id, tt.postId); err != nil {
				t.Errorf("Expected post stored under x9: %v", err)
			}
		})
	}
}

func TestIngestCommentIdempotent(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	f.remoteAuthor(t, "x1")
	post := f.localPost(t, a1, domain.VisibilityPublic)

	postRef := f.resolver.PostRef(f.resolver.LocalAuthorRef(a1.Id), post.Id.String())
	raw := []byte(fmt.Sprintf(`{"type":"comment","id":"%s","comment":"nice","contentType":"text/plain",
		"author":{"id":"https://P/authors/x1"}}`, f.resolver.CommentRef(postRef, "c1")))

	if err := f.inbox.Ingest(ctx, a1, raw); err != nil {
		t.Fatalf("Expected first delivery to be accepted, got %v", err)
	}
	if err := f.inbox.Ingest(ctx, a1, raw); Classify(err) != Conflict {
		t.Errorf("Expected second delivery to conflict, got %v", err)
	}

	n, _ := f.store.CountCommentsByPost(ctx, post.Id)
	if n != 1 {
		t.Errorf("Expected exactly 1 comment, got %d", n)
	}
	updated, _ := f.store.ReadPostById(ctx, post.Id)
	if updated.Count != 1 {
		t.Errorf("Expected post comment count 1, got %d", updated.Count)
	}
}

func TestIngestCommentUnknownPost(t *testing.T) {
	f := newFixture(t, "https://P/")
	a1 := f.localAuthor(t, "a1")
	f.remoteAuthor(t, "x1")

	raw := []byte(`{"type":"comment","id":"https://node.test/api/authors/a1/posts/missing/comments/c1","comment":"?",
		"contentType":"text/plain","author":{"id":"https://P/authors/x1"}}`)
	if err := f.inbox.Ingest(context.Background(), a1, raw); Classify(err) != NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestIngestLikeIdempotent(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	f.remoteAuthor(t, "x1")
	post := f.localPost(t, a1, domain.VisibilityPublic)
	comment := &domain.Comment{PostId: post.Id, AuthorId: a1.Id, Comment: "mine", ContentType: "text/plain"}
	if _, err := f.store.InsertComment(ctx, comment); err != nil {
		t.Fatalf("InsertComment failed: %v", err)
	}
	x2 := f.remoteAuthor(t, "x2")
	rc := "rc1"
	remoteComment := &domain.Comment{PostId: post.Id, AuthorId: x2.Id, ExternId: &rc, Comment: "theirs", ContentType: "text/plain"}
	if _, err := f.store.InsertComment(ctx, remoteComment); err != nil {
		t.Fatalf("InsertComment failed: %v", err)
	}

	postRef := f.resolver.PostRef(f.resolver.LocalAuthorRef(a1.Id), post.Id.String())
	tests := []struct {
		name       string
		summary    string
		object     string
		objectType domain.ObjectType
		objectId   string
	}{
		{name: "post", summary: "Remote x1 Likes your post", object: postRef, objectType: domain.ObjectPost, objectId: post.Id.String()},
		{name: "comment", summary: "Remote x1 Likes your comment", object: f.resolver.CommentRef(postRef, comment.Id.String()),
			objectType: domain.ObjectComment, objectId: comment.Id.String()},
		{name: "remote comment by extern id", summary: "Remote x1 Likes your comment", object: "https://P/authors/x2/posts/p9/comments/rc1",
			objectType: domain.ObjectComment, objectId: remoteComment.Id.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(fmt.Sprintf(`{"type":"like","summary":"%s","object":"%s","author":{"id":"https://P/authors/x1"}}`,
				tt.summary, tt.object))
			if err := f.inbox.Ingest(ctx, a1, raw); err != nil {
				t.Fatalf("Expected first like to be accepted, got %v", err)
			}
			if err := f.inbox.Ingest(ctx, a1, raw); Classify(err) != Conflict {
				t.Errorf("Expected repeated like to conflict, got %v", err)
			}
			n, _ := f.store.CountLikesByObject(ctx, tt.objectType, tt.objectId)
			if n != 1 {
				t.Errorf("Expected exactly 1 like, got %d", n)
			}
		})
	}
}

func TestIngestFromLocalAuthorOnlyNotifies(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	a2 := f.localAuthor(t, "a2")
	post := f.localPost(t, a2, domain.VisibilityPublic)

	raw := fmt.Sprintf(`{"type":"post","id":"%s","contentType":"text/plain","visibility":"PUBLIC","author":{"id":"%s"}}`,
		f.resolver.PostRef(f.resolver.LocalAuthorRef(a2.Id), post.Id.String()), f.resolver.LocalAuthorRef(a2.Id))
	for i := 0; i < 2; i++ {
		if err := f.inbox.Ingest(ctx, a1, []byte(raw)); err != nil {
			t.Fatalf("Expected accepted, got %v", err)
		}
	}

	n, _ := f.store.CountPosts(ctx, db.PostFilter{AuthorId: &a2.Id, Visibilities: allVisibilities})
	if n != 1 {
		t.Errorf("Expected the local post not to be copied, got %d posts", n)
	}
	notes, err := f.store.ReadNotifications(ctx, a1.Id, 10, 0)
	if err != nil {
		t.Fatalf("ReadNotifications failed: %v", err)
	}
	if len(notes) != 2 || notes[0].Type != "post" {
		t.Errorf("Expected 2 post notifications, got %+v", notes)
	}
}

func TestIngestIntoRemoteRecipientIsForbidden(t *testing.T) {
	f := newFixture(t, "https://P/")
	x1 := f.remoteAuthor(t, "x1")

	err := f.inbox.Ingest(context.Background(), x1, []byte(`{"type":"follow","actor":{"id":"x"}}`))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestConcurrentDeliveryConverges(t *testing.T) {
	f := newFileFixture(t, "https://P/")
	ctx := context.Background()
	a1 := f.localAuthor(t, "a1")
	x1 := f.remoteAuthor(t, "x1")
	post := f.localPost(t, a1, domain.VisibilityPublic)
	postRef := f.resolver.PostRef(f.resolver.LocalAuthorRef(a1.Id), post.Id.String())

	tests := []struct {
		name  string
		raw   string
		count func() (int, error)
	}{
		{
			name: "post",
			raw:  `{"type":"post","id":"https://P/authors/x1/posts/p1","contentType":"text/plain","visibility":"PUBLIC","author":{"id":"https://P/authors/x1"}}`,
			count: func() (int, error) {
				return f.store.CountPosts(ctx, db.PostFilter{AuthorId: &x1.Id, Visibilities: allVisibilities})
			},
		},
		{
			name: "comment",
			raw: fmt.Sprintf(`{"type":"comment","id":"%s","comment":"nice","contentType":"text/plain","author":{"id":"https://P/authors/x1"}}`,
				f.resolver.CommentRef(postRef, "c1")),
			count: func() (int, error) { return f.store.CountCommentsByPost(ctx, post.Id) },
		},
		{
			name: "like",
			raw:  fmt.Sprintf(`{"type":"like","summary":"x1 Likes your post","object":"%s","author":{"id":"https://P/authors/x1"}}`, postRef),
			count: func() (int, error) {
				return f.store.CountLikesByObject(ctx, domain.ObjectPost, post.Id.String())
			},
		},
	}

	const deliveries = 12
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := make([]Outcome, deliveries)
			errs := make([]error, deliveries)
			var wg sync.WaitGroup
			for i := 0; i < deliveries; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = f.inbox.Ingest(ctx, a1, []byte(tt.raw))
					outcomes[i] = Classify(errs[i])
				}(i)
			}
			wg.Wait()

			tally := map[Outcome]int{}
			for i, o := range outcomes {
				if o != Accepted && o != Conflict {
					t.Errorf("Delivery %d: unexpected outcome %s (%v)", i, o, errs[i])
				}
				tally[o]++
			}
			if tally[Accepted] != 1 || tally[Conflict] != deliveries-1 {
				t.Errorf("Expected 1 accepted and %d conflicts, got %v", deliveries-1, tally)
			}
			n, err := tt.count()
			if err != nil {
				t.Fatalf("count failed: %v", err)
			}
			if n != 1 {
				t.Errorf("Expected exactly 1 stored record, got %d", n)
			}
		})
	}
}
