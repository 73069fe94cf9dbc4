package federation

import (
	"context"

	"github.com/deemkeen/copse/domain"
	"github.com/pkg/errors"
)

// CanRead gates a single post. viewer is nil for anonymous and peer callers.
// PUBLIC and UNLISTED posts are readable by direct link; FRIENDS posts only
// by their author or one of the author's friends.
func (g *Graph) CanRead(ctx context.Context, viewer *domain.Author, post *domain.Post, author *domain.Author) error {
	if post.Visibility != domain.VisibilityFriends {
		return nil
	}
	if viewer != nil {
		if viewer.Id == author.Id {
			return nil
		}
		friend, err := g.IsFriend(ctx, author, viewer)
		if err != nil {
			return err
		}
		if friend {
			return nil
		}
	}
	return errors.Wrap(domain.ErrForbidden, "post is visible to friends only")
}

// ListVisibilities is what viewer may see when listing author's posts.
// Unlisted posts are never listed except to their author.
func (g *Graph) ListVisibilities(ctx context.Context, viewer, author *domain.Author) ([]domain.Visibility, error) {
	public := []domain.Visibility{domain.VisibilityPublic}
	if viewer == nil {
		return public, nil
	}
	if viewer.Id == author.Id {
		return []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends, domain.VisibilityUnlisted}, nil
	}
	friend, err := g.IsFriend(ctx, author, viewer)
	if err != nil {
		return nil, err
	}
	if friend {
		return []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends}, nil
	}
	return public, nil
}
