package federation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deemkeen/copse/db"
	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	"github.com/google/uuid"
)

const selfBase = "http://node.test/api/"

type fixture struct {
	store    *db.DB
	registry *Registry
	resolver *Resolver
	graph    *Graph
	inbox    *Processor
	peer     *domain.Peer
}

// newFixture wires the federation core over a migrated in-memory database
// with a single enabled peer at peerBase.
func newFixture(t *testing.T, peerBase string) *fixture {
	t.Helper()
	return newFixtureAt(t, peerBase, ":memory:")
}

// newFileFixture is newFixture over a database file with a real connection
// pool, for tests that need writers to race.
func newFileFixture(t *testing.T, peerBase string) *fixture {
	t.Helper()
	return newFixtureAt(t, peerBase, filepath.Join(t.TempDir(), "copse.db"))
}

func newFixtureAt(t *testing.T, peerBase, path string) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := db.Open(path)
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry, err := NewRegistry([]domain.Peer{{Id: uuid.New(), Name: "P", BaseURL: peerBase, Enabled: true}})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, err := store.UpsertPeers(ctx, registry.All()); err != nil {
		t.Fatalf("UpsertPeers failed: %v", err)
	}
	peer, _ := registry.ByBaseURL(util.NormalizeBaseURL(peerBase))

	resolver := NewResolver(selfBase, registry)
	graph := NewGraph(store)
	return &fixture{
		store:    store,
		registry: registry,
		resolver: resolver,
		graph:    graph,
		inbox:    NewProcessor(store, resolver, graph),
		peer:     peer,
	}
}

func (f *fixture) localAuthor(t *testing.T, username string) *domain.Author {
	t.Helper()
	a := &domain.Author{Username: username, PasswordHash: "hash", IsApproved: true}
	if err := f.store.CreateLocalAuthor(context.Background(), a); err != nil {
		t.Fatalf("CreateLocalAuthor failed: %v", err)
	}
	return a
}

func (f *fixture) remoteAuthor(t *testing.T, externId string) *domain.Author {
	t.Helper()
	a, _, err := f.store.GetOrCreateRemoteAuthor(context.Background(), f.peer.Id, externId, "Remote "+externId)
	if err != nil {
		t.Fatalf("GetOrCreateRemoteAuthor failed: %v", err)
	}
	return a
}

func (f *fixture) localPost(t *testing.T, author *domain.Author, visibility domain.Visibility) *domain.Post {
	t.Helper()
	p := &domain.Post{
		AuthorId:    author.Id,
		Title:       "hello",
		ContentType: domain.ContentPlain,
		Content:     "body",
		Visibility:  visibility,
	}
	if _, err := f.store.InsertPost(context.Background(), p); err != nil {
		t.Fatalf("InsertPost failed: %v", err)
	}
	return p
}
