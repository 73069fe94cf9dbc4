package federation

import (
	"context"
	"net/url"

	"github.com/deemkeen/copse/domain"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Gateway carries local actions on remote-owned entities to the owning peer
// and proxies reads of remote-owned resources. Credentials always come from
// the peer's registry entry.
type Gateway struct {
	client   *Client
	resolver *Resolver
	graph    *Graph
	cache    *ProfileCache
}

func NewGateway(client *Client, resolver *Resolver, graph *Graph, cache *ProfileCache) *Gateway {
	return &Gateway{client: client, resolver: resolver, graph: graph, cache: cache}
}

func (g *Gateway) peerOf(a *domain.Author) (*domain.Peer, error) {
	peer, ok := g.resolver.PeerOf(a)
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "peer of author %s", a.Id)
	}
	return peer, nil
}

func inboxPath(a *domain.Author) string {
	return "authors/" + url.PathEscape(a.ExternId) + "/inbox"
}

// RelayInbox forwards a local author's inbox payload to the peer owning the
// remote-cached recipient. Follow payloads go through the same edge
// bookkeeping as SendFollow.
func (g *Gateway) RelayInbox(ctx context.Context, sender, recipient *domain.Author, raw []byte) (*RemoteResult, error) {
	peer, err := g.peerOf(recipient)
	if err != nil {
		return nil, err
	}
	ev, err := DecodeEvent(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := ev.(*FollowEvent); ok {
		return g.deliverFollow(ctx, peer, sender, recipient, raw)
	}
	return g.client.Deliver(ctx, peer, inboxPath(recipient), raw, peer.Outbound)
}

// SendFollow asks the peer owning target to accept follower, a local author.
func (g *Gateway) SendFollow(ctx context.Context, follower, target *domain.Author) (*RemoteResult, error) {
	peer, err := g.peerOf(target)
	if err != nil {
		return nil, err
	}
	return g.deliverFollow(ctx, peer, follower, target, g.resolver.FollowJSON(follower, target))
}

// deliverFollow records the local edge first, so a repeated follow is a
// conflict; the edge is dropped again when the peer call fails so the follow
// can be retried. A delivered follow changes the target's counts on the
// peer, so its cached profile is dropped.
func (g *Gateway) deliverFollow(ctx context.Context, peer *domain.Peer, follower, target *domain.Author, payload any) (*RemoteResult, error) {
	if err := g.graph.RequestFollow(ctx, follower.Id, target.Id); err != nil {
		return nil, err
	}
	res, err := g.client.Deliver(ctx, peer, inboxPath(target), payload, peer.Outbound)
	if err != nil {
		if undoErr := g.graph.Unfollow(ctx, follower.Id, target.Id); undoErr != nil {
			log.Error().Err(undoErr).Msg("Relay: could not drop follow after failed delivery")
		}
		return nil, err
	}
	g.cache.Delete(ctx, profileKey(target))
	return res, nil
}

func profileKey(a *domain.Author) string {
	return "author#" + a.Id.String()
}

// SendComment delivers c, written by a local author on a post owned by a
// remote-cached author. The peer learns c's local id, so a later local copy
// and the peer's record share it.
func (g *Gateway) SendComment(ctx context.Context, c *domain.Comment, commenter, postAuthor *domain.Author, postRef string) (*RemoteResult, error) {
	peer, err := g.peerOf(postAuthor)
	if err != nil {
		return nil, err
	}
	payload := g.resolver.CommentJSON(c, postRef, commenter)
	return g.client.Deliver(ctx, peer, inboxPath(postAuthor), payload, peer.Outbound)
}

// SendLike delivers a like by a local author on a post or comment owned by a
// remote-cached author.
func (g *Gateway) SendLike(ctx context.Context, liker, owner *domain.Author, objectType domain.ObjectType, objectRef string) (*RemoteResult, error) {
	peer, err := g.peerOf(owner)
	if err != nil {
		return nil, err
	}
	return g.client.Deliver(ctx, peer, inboxPath(owner), g.resolver.LikeJSON(liker, objectType, objectRef), peer.Outbound)
}

// Proxy reads authors/<extern id><subpath> from the owner's peer. query is
// appended as given.
func (g *Gateway) Proxy(ctx context.Context, owner *domain.Author, subpath string, query url.Values) (*RemoteResult, error) {
	peer, err := g.peerOf(owner)
	if err != nil {
		return nil, err
	}
	path := "authors/" + url.PathEscape(owner.ExternId) + subpath
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return g.client.ProxyRead(ctx, peer, path, peer.Outbound)
}

// ProxyAuthor is Proxy for the author profile itself, served from the
// profile cache when fresh.
func (g *Gateway) ProxyAuthor(ctx context.Context, owner *domain.Author) (*RemoteResult, error) {
	key := profileKey(owner)
	if res, ok := g.cache.Get(ctx, key); ok {
		return res, nil
	}
	res, err := g.Proxy(ctx, owner, "", nil)
	if err != nil {
		return nil, err
	}
	g.cache.Set(ctx, key, res)
	return res, nil
}
