package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/epicsgo/caserver/internal/config"
	"github.com/epicsgo/caserver/internal/observability"
	"github.com/epicsgo/caserver/internal/provider"
	"github.com/epicsgo/caserver/internal/provider/pebbleprov"
	"github.com/epicsgo/caserver/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML server config; defaults apply when empty")
	flag.Parse()

	logger := observability.InitLogger("caserverd")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load server config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded server config")
	}

	reg := provider.NewRegistry()
	if cfg.Sim.Enabled {
		sim := provider.NewSim(cfg.Sim.Interval())
		defer sim.Close()
		if err := reg.Register("sim", sim); err != nil {
			log.Fatal().Err(err).Msg("failed to register sim provider")
		}
		log.Info().Dur("interval", cfg.Sim.Interval()).Msg("sim provider registered")
	}
	if cfg.Storage.Enabled {
		store, err := pebbleprov.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to open pv store")
		}
		defer store.Close()
		if err := reg.Register("store", store); err != nil {
			log.Fatal().Err(err).Msg("failed to register pv store")
		}
		log.Info().Str("path", cfg.Storage.Path).Msg("pv store registered")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.AdminAddr != "" {
		admin := observability.AdminRouter(cfg.Name, cfg.CorsOrigins, logger)
		go func() {
			if err := http.ListenAndServe(cfg.AdminAddr, admin); err != nil {
				log.Error().Err(err).Str("addr", cfg.AdminAddr).Msg("admin endpoint stopped")
			}
		}()
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin endpoint up")
	}

	srv := server.New(cfg, reg, logger)
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	srv.Wait()
	log.Info().Msg("shutdown complete")
}
