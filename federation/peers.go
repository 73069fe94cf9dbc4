package federation

import (
	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Registry is the process-wide set of federation partners. It is built once
// at startup and never mutated, so concurrent reads need no locking.
type Registry struct {
	peers  []domain.Peer
	byBase map[string]*domain.Peer
	byId   map[uuid.UUID]*domain.Peer
}

// NewRegistry indexes peers by normalized base URL and id. Duplicate base
// URLs or ids are a configuration error.
func NewRegistry(peers []domain.Peer) (*Registry, error) {
	r := &Registry{
		peers:  make([]domain.Peer, len(peers)),
		byBase: make(map[string]*domain.Peer, len(peers)),
		byId:   make(map[uuid.UUID]*domain.Peer, len(peers)),
	}
	for i, p := range peers {
		if p.BaseURL == "" {
			return nil, errors.Errorf("peer %q has no base url", p.Name)
		}
		p.BaseURL = util.NormalizeBaseURL(p.BaseURL)
		if _, dup := r.byBase[p.BaseURL]; dup {
			return nil, errors.Errorf("peer base url %s configured twice", p.BaseURL)
		}
		if _, dup := r.byId[p.Id]; dup {
			return nil, errors.Errorf("peer id %s configured twice", p.Id)
		}
		r.peers[i] = p
		r.byBase[p.BaseURL] = &r.peers[i]
		r.byId[p.Id] = &r.peers[i]
	}
	return r, nil
}

// RegistryFromConfig turns the peers section of the config file into a
// Registry. A peer without an explicit id gets a stable one derived from its
// base URL, and peers are enabled unless the config says otherwise.
func RegistryFromConfig(entries []util.PeerConf) (*Registry, error) {
	peers := make([]domain.Peer, 0, len(entries))
	for _, e := range entries {
		base := util.NormalizeBaseURL(e.BaseUrl)
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(base))
		if e.Id != "" {
			parsed, err := uuid.Parse(e.Id)
			if err != nil {
				return nil, errors.Wrapf(err, "peer %s id", base)
			}
			id = parsed
		}
		peers = append(peers, domain.Peer{
			Id:                  id,
			Name:                lo.Ternary(e.Name != "", e.Name, base),
			BaseURL:             base,
			Enabled:             e.Enabled == nil || *e.Enabled,
			Outbound:            domain.Credentials{Username: e.Outbound.Username, Password: e.Outbound.Password},
			InboundUsername:     e.Inbound.Username,
			InboundPasswordHash: e.Inbound.PasswordHash,
		})
	}
	return NewRegistry(peers)
}

// WithStoredIds rebuilds the registry with the ids the database knows each
// base url by. Peers absent from stored keep their configured id.
func (r *Registry) WithStoredIds(stored []domain.Peer) (*Registry, error) {
	ids := lo.Associate(stored, func(p domain.Peer) (string, uuid.UUID) {
		return util.NormalizeBaseURL(p.BaseURL), p.Id
	})
	peers := r.All()
	for i := range peers {
		id, ok := ids[peers[i].BaseURL]
		if !ok || id == peers[i].Id {
			continue
		}
		log.Warn().Str("peer", peers[i].BaseURL).Str("configured", peers[i].Id.String()).
			Str("stored", id.String()).Msg("Peer id differs from the stored one, keeping the stored id")
		peers[i].Id = id
	}
	return NewRegistry(peers)
}

// ByBaseURL is an exact match on the normalized base URL.
func (r *Registry) ByBaseURL(base string) (*domain.Peer, bool) {
	p, ok := r.byBase[base]
	return p, ok
}

func (r *Registry) ByID(id uuid.UUID) (*domain.Peer, bool) {
	p, ok := r.byId[id]
	return p, ok
}

// All returns a copy of the registered peers.
func (r *Registry) All() []domain.Peer {
	return append([]domain.Peer(nil), r.peers...)
}

// AuthenticateInbound checks the basic-auth pair a peer presents when
// calling this node. Disabled peers never authenticate.
func (r *Registry) AuthenticateInbound(username, password string) (*domain.Peer, bool) {
	for i := range r.peers {
		p := &r.peers[i]
		if !p.Enabled || p.InboundUsername == "" || p.InboundUsername != username {
			continue
		}
		if util.CheckPassword(p.InboundPasswordHash, password) {
			return p, true
		}
	}
	return nil, false
}
