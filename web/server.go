package web

import (
	"github.com/deemkeen/copse/db"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/util"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Server holds everything the HTTP handlers need. It is built once in main
// and shared by all requests.
type Server struct {
	conf     *util.AppConfig
	store    *db.DB
	registry *federation.Registry
	resolver *federation.Resolver
	graph    *federation.Graph
	inbox    *federation.Processor
	gateway  *federation.Gateway
}

// NewServer wires the federation core over store. Peer calls are bounded by
// the configured delivery timeout.
func NewServer(conf *util.AppConfig, store *db.DB, registry *federation.Registry) (*Server, error) {
	cache, err := federation.NewProfileCache(conf.Conf.ProfileCacheTtl)
	if err != nil {
		return nil, errors.Wrap(err, "profile cache")
	}
	resolver := federation.NewResolver(conf.ApiBaseURL(), registry)
	graph := federation.NewGraph(store)
	return &Server{
		conf:     conf,
		store:    store,
		registry: registry,
		resolver: resolver,
		graph:    graph,
		inbox:    federation.NewProcessor(store, resolver, graph),
		gateway:  federation.NewGateway(federation.NewClient(conf.Conf.DeliveryTimeout), resolver, graph, cache),
	}, nil
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary
