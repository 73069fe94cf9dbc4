package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deemkeen/copse/db"
	"github.com/deemkeen/copse/federation"
	"github.com/deemkeen/copse/util"
	"github.com/deemkeen/copse/web"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read configuration")
	}
	util.SetupLogging(conf.Conf.LogLevel, conf.Conf.LogJson)
	gin.SetMode(gin.ReleaseMode)
	log.Debug().Msg("Configuration: " + util.PrettyPrint(conf.Conf))

	store, err := db.Open(util.ResolveDatabasePath(conf.Conf.Database))
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open database")
	}
	defer store.Close()

	log.Info().Msg("Running database migrations...")
	if err := store.RunMigrations(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Migrations failed")
	}

	registry, err := federation.RegistryFromConfig(conf.Peers)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid peer configuration")
	}
	stored, err := store.UpsertPeers(context.Background(), registry.All())
	if err != nil {
		log.Fatal().Err(err).Msg("Could not store peers")
	}
	if registry, err = registry.WithStoredIds(stored); err != nil {
		log.Fatal().Err(err).Msg("Invalid peer configuration")
	}
	if n, err := store.CountPeers(context.Background()); err == nil {
		log.Info().Int("known", n).Int("configured", len(registry.All())).Msg("Peers stored")
	}

	fmt.Println(util.Banner(conf, registry.All()))

	srv, err := web.NewServer(conf, store, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not build server")
	}

	startServing(&http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	})
}

func startServing(s *http.Server) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Str("addr", s.Addr).Msg("Starting HTTP server")
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-done
	log.Info().Msg("Stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete")
	}
}
