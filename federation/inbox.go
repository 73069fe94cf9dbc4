package federation

import (
	"context"

	"github.com/deemkeen/copse/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Outcome classifies the result of an ingest.
type Outcome int

const (
	Accepted Outcome = iota
	Conflict
	Rejected
	NotFound
	Failed
)

func (o Outcome) String() string {
	return [...]string{"accepted", "conflict", "rejected", "not found", "failed"}[o]
}

// Classify maps an Ingest error onto its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Accepted
	case errors.Is(err, domain.ErrConflict):
		return Conflict
	case errors.Is(err, domain.ErrUnsupported), errors.Is(err, domain.ErrMalformed):
		return Rejected
	case errors.Is(err, domain.ErrNotFound):
		return NotFound
	default:
		return Failed
	}
}

// InboxStore is the persistence the processor materializes into.
type InboxStore interface {
	ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error)
	ReadRemoteAuthor(ctx context.Context, peerId uuid.UUID, externId string) (*domain.Author, error)
	ReadAuthorByExternId(ctx context.Context, externId string) (*domain.Author, error)
	GetOrCreateRemoteAuthor(ctx context.Context, peerId uuid.UUID, externId, name string) (*domain.Author, bool, error)
	ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ReadPostByAnyExternId(ctx context.Context, externId string) (*domain.Post, error)
	ReadCommentById(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	ReadCommentByAnyExternId(ctx context.Context, externId string) (*domain.Comment, error)
	InsertPost(ctx context.Context, p *domain.Post) (bool, error)
	InsertComment(ctx context.Context, c *domain.Comment) (bool, error)
	InsertLike(ctx context.Context, l *domain.Like) (bool, error)
	InsertNotification(ctx context.Context, n *domain.Notification) error
}

// Processor ingests inbox events addressed to local authors.
type Processor struct {
	store    InboxStore
	resolver *Resolver
	graph    *Graph
}

func NewProcessor(store InboxStore, resolver *Resolver, graph *Graph) *Processor {
	return &Processor{store: store, resolver: resolver, graph: graph}
}

// Ingest decodes raw and applies it to the local recipient. A nil error is
// Accepted; otherwise the error wraps ErrConflict, ErrUnsupported,
// ErrMalformed or ErrNotFound (see Classify). Records authored by remote
// authors are materialized; events from local authors only notify since
// their records already live here. Every accepted event appends a
// notification carrying the raw payload.
func (p *Processor) Ingest(ctx context.Context, recipient *domain.Author, raw []byte) error {
	if recipient.IsRemote() {
		return errors.Wrap(domain.ErrForbidden, "ingest into a remote-cached author")
	}

	ev, err := DecodeEvent(raw)
	if err != nil {
		log.Info().Err(err).Str("recipient", recipient.Id.String()).Msg("Inbox: rejected payload")
		return err
	}

	switch e := ev.(type) {
	case *FollowEvent:
		err = p.ingestFollow(ctx, recipient, e)
	case *PostEvent:
		err = p.ingestPost(ctx, e)
	case *CommentEvent:
		err = p.ingestComment(ctx, e)
	case *LikeEvent:
		err = p.ingestLike(ctx, e)
	}
	if err != nil {
		log.Info().Err(err).Str("kind", ev.Kind()).Str("actor", ev.ActorRef()).
			Str("outcome", Classify(err).String()).Msg("Inbox: not accepted")
		return err
	}

	n := &domain.Notification{RecipientId: recipient.Id, Type: ev.Kind(), ActorRef: ev.ActorRef(), Data: raw}
	if err := p.store.InsertNotification(ctx, n); err != nil {
		return errors.Wrap(err, "notify recipient")
	}
	log.Info().Str("kind", ev.Kind()).Str("actor", ev.ActorRef()).Str("recipient", recipient.Id.String()).Msg("Inbox: accepted")
	return nil
}

func (p *Processor) ingestFollow(ctx context.Context, recipient *domain.Author, e *FollowEvent) error {
	actor := e.actor()
	follower, err := p.resolveAuthor(ctx, actor.Id, actor.DisplayName, true)
	if err != nil {
		return err
	}
	if follower.Id == recipient.Id {
		return errors.Wrap(domain.ErrMalformed, "author cannot follow itself")
	}
	return p.graph.RequestFollow(ctx, follower.Id, recipient.Id)
}

func (p *Processor) ingestPost(ctx context.Context, e *PostEvent) error {
	author, err := p.resolveAuthor(ctx, e.Author.Id, e.Author.DisplayName, false)
	if err != nil {
		return err
	}
	contentType, ok := domain.ParseContentType(e.ContentType)
	if !ok {
		return errors.Wrapf(domain.ErrMalformed, "content type %q", e.ContentType)
	}
	visibility, ok := domain.ParseVisibility(e.Visibility)
	if !ok {
		return errors.Wrapf(domain.ErrMalformed, "visibility %q", e.Visibility)
	}
	if !author.IsRemote() {
		return nil
	}

	externId := LastSegment(e.Id)
	post := &domain.Post{
		AuthorId:    author.Id,
		ExternId:    &externId,
		Title:       e.Title,
		Description: e.Description,
		Source:      e.Source,
		Origin:      e.Origin,
		ContentType: contentType,
		Content:     e.Content,
		Visibility:  visibility,
		Published:   parsePublished(e.Published),
	}
	created, err := p.store.InsertPost(ctx, post)
	if err != nil {
		return err
	}
	if !created {
		return errors.Wrapf(domain.ErrConflict, "post %s", externId)
	}
	return nil
}

func (p *Processor) ingestComment(ctx context.Context, e *CommentEvent) error {
	author, err := p.resolveAuthor(ctx, e.Author.Id, e.Author.DisplayName, false)
	if err != nil {
		return err
	}
	post, err := p.resolvePost(ctx, SegmentAfter(e.Id, "posts"))
	if err != nil {
		return err
	}
	contentType, ok := domain.ParseContentType(e.ContentType)
	if !ok {
		return errors.Wrapf(domain.ErrMalformed, "content type %q", e.ContentType)
	}
	if !author.IsRemote() {
		return nil
	}

	externId := LastSegment(e.Id)
	comment := &domain.Comment{
		PostId:      post.Id,
		AuthorId:    author.Id,
		ExternId:    &externId,
		Comment:     e.Comment,
		ContentType: contentType.Label(),
		Published:   parsePublished(e.Published),
	}
	created, err := p.store.InsertComment(ctx, comment)
	if err != nil {
		return err
	}
	if !created {
		return errors.Wrapf(domain.ErrConflict, "comment %s", externId)
	}
	return nil
}

func (p *Processor) ingestLike(ctx context.Context, e *LikeEvent) error {
	author, err := p.resolveAuthor(ctx, e.Author.Id, e.Author.DisplayName, false)
	if err != nil {
		return err
	}

	objectType := ObjectTypeFromSummary(e.Summary)
	objectId := LastSegment(e.Object)
	switch objectType {
	case domain.ObjectPost:
		post, err := p.resolvePost(ctx, objectId)
		if err != nil {
			return err
		}
		objectId = post.Id.String()
	case domain.ObjectComment:
		comment, err := p.resolveComment(ctx, objectId)
		if err != nil {
			return err
		}
		objectId = comment.Id.String()
	}
	if !author.IsRemote() {
		return nil
	}

	created, err := p.store.InsertLike(ctx, &domain.Like{AuthorId: author.Id, ObjectType: objectType, ObjectId: objectId})
	if err != nil {
		return err
	}
	if !created {
		return errors.Wrapf(domain.ErrConflict, "%s like on %s", objectType, objectId)
	}
	return nil
}

// resolveAuthor looks the trailing segment of ref up as a local id first and
// then by the alternate key: (peer, extern id) when ref names a registered
// peer, or an extern id on any peer otherwise. With create set, an unknown
// author of a registered peer is cached as a placeholder.
func (p *Processor) resolveAuthor(ctx context.Context, ref, displayName string, create bool) (*domain.Author, error) {
	res := p.resolver.Resolve(ref, Lenient)
	if res.Kind == Unresolvable {
		return nil, errors.Wrapf(domain.ErrNotFound, "author %s", ref)
	}

	if id, err := uuid.Parse(res.Id); err == nil {
		a, err := p.store.ReadAuthorById(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	var a *domain.Author
	var err error
	switch res.Kind {
	case Remote:
		a, err = p.store.ReadRemoteAuthor(ctx, res.Peer.Id, res.Id)
		if errors.Is(err, domain.ErrNotFound) && create {
			var created bool
			a, created, err = p.store.GetOrCreateRemoteAuthor(ctx, res.Peer.Id, res.Id, displayName)
			if err == nil && created {
				log.Info().Str("peer", res.Peer.BaseURL).Str("extern", res.Id).Msg("Inbox: cached remote author")
			}
		}
	case Local:
		a, err = p.store.ReadAuthorByExternId(ctx, res.Id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// resolvePost tries id as a local post id and then as an extern id.
func (p *Processor) resolvePost(ctx context.Context, id string) (*domain.Post, error) {
	if id == "" {
		return nil, errors.Wrap(domain.ErrNotFound, "post reference")
	}
	if postId, err := uuid.Parse(id); err == nil {
		post, err := p.store.ReadPostById(ctx, postId)
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return p.store.ReadPostByAnyExternId(ctx, id)
}

func (p *Processor) resolveComment(ctx context.Context, id string) (*domain.Comment, error) {
	if id == "" {
		return nil, errors.Wrap(domain.ErrNotFound, "comment reference")
	}
	if commentId, err := uuid.Parse(id); err == nil {
		c, err := p.store.ReadCommentById(ctx, commentId)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return p.store.ReadCommentByAnyExternId(ctx, id)
}
