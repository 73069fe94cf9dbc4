package federation

import (
	"net/url"
	"strings"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	"github.com/google/uuid"
)

// Mode decides what a reference matching no registered peer means.
type Mode int

const (
	// Lenient treats an unmatched reference as addressing this node.
	Lenient Mode = iota
	// Strict accepts an unmatched reference only if it carries this node's
	// own base URL.
	Strict
)

type Kind int

const (
	Unresolvable Kind = iota
	Local
	Remote
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unresolvable"
	}
}

// Resolution is the outcome of resolving an identity reference. Id is the
// local id for Local and the peer's extern id for Remote.
type Resolution struct {
	Kind Kind
	Id   string
	Peer *domain.Peer
}

// PeerLookup is the part of the Registry the resolver needs.
type PeerLookup interface {
	ByBaseURL(base string) (*domain.Peer, bool)
	ByID(id uuid.UUID) (*domain.Peer, bool)
}

// Resolver maps bare ids and foreign references to local or remote identities.
type Resolver struct {
	self  string
	peers PeerLookup
}

// NewResolver takes this node's API base URL (e.g. http://host/api/).
func NewResolver(selfBase string, peers PeerLookup) *Resolver {
	return &Resolver{self: util.NormalizeBaseURL(selfBase), peers: peers}
}

func (r *Resolver) Self() string {
	return r.self
}

// Resolve decomposes ref as <base>/<resource>/<id>. The reference is
// percent-decoded exactly once before splitting and one trailing slash is
// ignored. An identifier without any slash is always Local.
func (r *Resolver) Resolve(ref string, mode Mode) Resolution {
	if ref == "" {
		return Resolution{Kind: Unresolvable}
	}
	if !strings.Contains(ref, "/") && !strings.Contains(ref, "%") {
		return Resolution{Kind: Local, Id: ref}
	}

	decoded, err := url.PathUnescape(ref)
	if err != nil {
		if !strings.Contains(ref, "/") {
			return Resolution{Kind: Local, Id: ref}
		}
		return Resolution{Kind: Unresolvable}
	}
	if !strings.Contains(decoded, "/") {
		return Resolution{Kind: Local, Id: decoded}
	}

	segments := strings.Split(strings.TrimSuffix(decoded, "/"), "/")
	id := segments[len(segments)-1]
	if id == "" {
		return Resolution{Kind: Unresolvable}
	}
	base := strings.Join(segments[:max(0, len(segments)-2)], "/") + "/"

	if peer, ok := r.peers.ByBaseURL(base); ok {
		return Resolution{Kind: Remote, Id: id, Peer: peer}
	}
	if mode == Lenient || base == r.self {
		return Resolution{Kind: Local, Id: id}
	}
	return Resolution{Kind: Unresolvable}
}

// PeerOf returns the owning peer of a remote-cached author.
func (r *Resolver) PeerOf(a *domain.Author) (*domain.Peer, bool) {
	if !a.IsRemote() {
		return nil, false
	}
	return r.peers.ByID(*a.PeerId)
}

// Host is the base URL of the node owning a.
func (r *Resolver) Host(a *domain.Author) string {
	if peer, ok := r.PeerOf(a); ok {
		return peer.BaseURL
	}
	return r.self
}

// AuthorRef is the canonical reference of an author as seen from this node.
// Remote-cached authors point at their owning peer.
func (r *Resolver) AuthorRef(a *domain.Author) string {
	if peer, ok := r.PeerOf(a); ok {
		return peer.BaseURL + "authors/" + a.ExternId
	}
	return r.self + "authors/" + a.Id.String()
}

func (r *Resolver) LocalAuthorRef(id uuid.UUID) string {
	return r.self + "authors/" + id.String()
}

func (r *Resolver) PostRef(authorRef string, postId string) string {
	return authorRef + "/posts/" + postId
}

func (r *Resolver) CommentRef(postRef string, commentId string) string {
	return postRef + "/comments/" + commentId
}

// Encode percent-encodes a reference for use as a single path segment.
func Encode(ref string) string {
	return url.PathEscape(ref)
}

// LastSegment returns the trailing path segment of a reference.
func LastSegment(ref string) string {
	trimmed := strings.TrimSuffix(ref, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// SegmentAfter returns the path segment following marker, or "".
func SegmentAfter(ref, marker string) string {
	segments := strings.Split(strings.TrimSuffix(ref, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == marker {
			return segments[i+1]
		}
	}
	return ""
}
