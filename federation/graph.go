package federation

import (
	"context"

	"github.com/deemkeen/copse/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FollowStore holds directed follow edges.
type FollowStore interface {
	InsertFollow(ctx context.Context, followerId, targetId uuid.UUID) (bool, error)
	DeleteFollow(ctx context.Context, followerId, targetId uuid.UUID) (bool, error)
	HasFollow(ctx context.Context, followerId, targetId uuid.UUID) (bool, error)
	ReadFollowers(ctx context.Context, targetId uuid.UUID) ([]domain.Author, error)
	ReadFollowing(ctx context.Context, followerId uuid.UUID) ([]domain.Author, error)
	ReadMutuals(ctx context.Context, id uuid.UUID) ([]domain.Author, error)
}

// Graph answers follow and friend questions over a FollowStore. Each edge is
// either absent or present; there is no pending state.
type Graph struct {
	store FollowStore
}

func NewGraph(store FollowStore) *Graph {
	return &Graph{store: store}
}

// Follow adds actor -> target. Adding an existing edge is a no-op.
func (g *Graph) Follow(ctx context.Context, actor, target uuid.UUID) error {
	_, err := g.store.InsertFollow(ctx, actor, target)
	return err
}

// RequestFollow adds follower -> target and reports ErrConflict when the
// edge is already present.
func (g *Graph) RequestFollow(ctx context.Context, follower, target uuid.UUID) error {
	created, err := g.store.InsertFollow(ctx, follower, target)
	if err != nil {
		return err
	}
	if !created {
		return errors.Wrap(domain.ErrConflict, "already following")
	}
	return nil
}

func (g *Graph) Unfollow(ctx context.Context, actor, target uuid.UUID) error {
	_, err := g.store.DeleteFollow(ctx, actor, target)
	return err
}

// RemoveFollower drops follower -> target, NotFound when there is no such edge.
func (g *Graph) RemoveFollower(ctx context.Context, target, follower uuid.UUID) error {
	removed, err := g.store.DeleteFollow(ctx, follower, target)
	if err != nil {
		return err
	}
	if !removed {
		return errors.Wrap(domain.ErrNotFound, "not a follower")
	}
	return nil
}

// IsFollowing reports the edge a -> b.
func (g *Graph) IsFollowing(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.store.HasFollow(ctx, a, b)
}

// IsFollowedBy reports the edge b -> a.
func (g *Graph) IsFollowedBy(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.store.HasFollow(ctx, b, a)
}

// IsFriend is not symmetric across the node boundary. When b is a
// remote-cached author, b following a is enough: remote follow accepts are
// not modeled, so an inbound follow counts as accepted. Otherwise both edges
// must exist.
func (g *Graph) IsFriend(ctx context.Context, a, b *domain.Author) (bool, error) {
	if a.Id == b.Id {
		return false, nil
	}
	followedBy, err := g.IsFollowedBy(ctx, a.Id, b.Id)
	if err != nil || !followedBy {
		return false, err
	}
	if b.IsRemote() {
		return true, nil
	}
	return g.IsFollowing(ctx, a.Id, b.Id)
}

func (g *Graph) Followers(ctx context.Context, id uuid.UUID) ([]domain.Author, error) {
	return g.store.ReadFollowers(ctx, id)
}

func (g *Graph) Following(ctx context.Context, id uuid.UUID) ([]domain.Author, error) {
	return g.store.ReadFollowing(ctx, id)
}

// Friends lists the authors with edges in both directions.
func (g *Graph) Friends(ctx context.Context, id uuid.UUID) ([]domain.Author, error) {
	return g.store.ReadMutuals(ctx, id)
}
