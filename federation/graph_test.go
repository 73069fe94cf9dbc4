package federation

import (
	"context"
	"testing"

	"github.com/deemkeen/copse/domain"
	"github.com/pkg/errors"
)

func TestFollowIsIdempotent(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a := f.localAuthor(t, "a")
	b := f.localAuthor(t, "b")

	for i := 0; i < 2; i++ {
		if err := f.graph.Follow(ctx, a.Id, b.Id); err != nil {
			t.Fatalf("Follow #%d failed: %v", i+1, err)
		}
	}
	followers, _ := f.graph.Followers(ctx, b.Id)
	if len(followers) != 1 || followers[0].Id != a.Id {
		t.Errorf("Expected a as the only follower, got %+v", followers)
	}
}

func TestRequestFollowConflict(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a := f.localAuthor(t, "a")
	b := f.localAuthor(t, "b")

	if err := f.graph.RequestFollow(ctx, a.Id, b.Id); err != nil {
		t.Fatalf("First RequestFollow failed: %v", err)
	}
	if err := f.graph.RequestFollow(ctx, a.Id, b.Id); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict on repeat, got %v", err)
	}
}

func TestUnfollowAndRemoveFollower(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a := f.localAuthor(t, "a")
	b := f.localAuthor(t, "b")

	f.graph.Follow(ctx, a.Id, b.Id)
	if err := f.graph.Unfollow(ctx, a.Id, b.Id); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}
	if err := f.graph.Unfollow(ctx, a.Id, b.Id); err != nil {
		t.Errorf("Unfollow of an absent edge should be a no-op, got %v", err)
	}

	f.graph.Follow(ctx, a.Id, b.Id)
	if err := f.graph.RemoveFollower(ctx, b.Id, a.Id); err != nil {
		t.Fatalf("RemoveFollower failed: %v", err)
	}
	if err := f.graph.RemoveFollower(ctx, b.Id, a.Id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing follower, got %v", err)
	}
}

func TestIsFriendAsymmetry(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a := f.localAuthor(t, "a")
	c := f.localAuthor(t, "c")
	b := f.remoteAuthor(t, "b")

	f.graph.Follow(ctx, b.Id, a.Id)
	f.graph.Follow(ctx, c.Id, a.Id)

	tests := []struct {
		name string
		x, y *domain.Author
		want bool
	}{
		{name: "remote follower counts as friend", x: a, y: b, want: true},
		{name: "local one-way follow is not friendship", x: a, y: c, want: false},
		{name: "not from the follower's side", x: c, y: a, want: false},
		{name: "self", x: a, y: a, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.graph.IsFriend(ctx, tt.x, tt.y)
			if err != nil {
				t.Fatalf("IsFriend failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	f.graph.Follow(ctx, a.Id, c.Id)
	if ok, _ := f.graph.IsFriend(ctx, a, c); !ok {
		t.Error("Expected mutual local follow to be friendship")
	}
	friends, _ := f.graph.Friends(ctx, a.Id)
	if len(friends) != 1 || friends[0].Id != c.Id {
		t.Errorf("Expected c as the only mutual, got %+v", friends)
	}
}

func TestFollowingListing(t *testing.T) {
	f := newFixture(t, "https://P/")
	ctx := context.Background()
	a := f.localAuthor(t, "a")
	b := f.localAuthor(t, "b")
	x := f.remoteAuthor(t, "x")

	f.graph.Follow(ctx, a.Id, b.Id)
	f.graph.Follow(ctx, a.Id, x.Id)

	following, err := f.graph.Following(ctx, a.Id)
	if err != nil {
		t.Fatalf("Following failed: %v", err)
	}
	if len(following) != 2 {
		t.Fatalf("Expected 2 followed authors, got %d", len(following))
	}
	remote := 0
	for _, a := range following {
		if a.IsRemote() && a.ExternId == "x" {
			remote++
		}
	}
	if remote != 1 {
		t.Errorf("Expected the remote author among followed authors, got %+v", following)
	}
}
