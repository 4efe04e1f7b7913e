package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	tomb "gopkg.in/tomb.v2"

	"github.com/uhyunpark/anthic/params"
	"github.com/uhyunpark/anthic/pkg/api"
	"github.com/uhyunpark/anthic/pkg/app/matcher"
	"github.com/uhyunpark/anthic/pkg/client"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/p2p"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/subintent"
	"github.com/uhyunpark/anthic/pkg/util"
)

func main() {
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", cfg.Node.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatalw("node_failed", "err", err)
	}
	sugar.Info("node_stopped")
}

func run(ctx context.Context, cfg params.Config, sugar *zap.SugaredLogger) error {
	// ---- Venue ----
	venue := model.DevnetVenue()
	if cfg.Node.VenueConfig != "" {
		v, err := model.LoadVenueFile(cfg.Node.VenueConfig)
		if err != nil {
			return err
		}
		venue = v
	}
	if venue.NetworkID != cfg.Node.NetworkID {
		sugar.Warnw("network_id_mismatch", "venue", venue.NetworkID, "config", cfg.Node.NetworkID)
	}
	sugar.Infow("venue_loaded",
		"file", cfg.Node.VenueConfig,
		"network_id", venue.NetworkID,
		"tokens", len(venue.Tokens),
		"accounts", len(venue.Accounts),
		"instamint", venue.Instamint != nil)

	// ---- Storage ----
	var store storage.OrderStore
	if cfg.Node.DBPath != "" {
		ps, err := storage.NewPebbleStore(cfg.Node.DBPath)
		if err != nil {
			return err
		}
		store = ps
		sugar.Infow("store_opened", "backend", "pebble", "path", cfg.Node.DBPath)
	} else {
		store = storage.NewInMemoryOrderStore()
		sugar.Infow("store_opened", "backend", "memory")
	}
	defer store.Close()

	var wal storage.WAL = storage.NewNopWAL()
	if cfg.Node.WALPath != "" {
		fw, err := storage.NewFileWAL(cfg.Node.WALPath)
		if err != nil {
			return err
		}
		defer fw.Close()
		wal = fw
	}

	// ---- Network ----
	var net p2p.Network = p2p.NopNet{}
	var lpn *p2p.Libp2pNet
	if cfg.P2P.ListenAddr != "" {
		var err error
		lpn, err = p2p.NewLibp2pNet(ctx, p2p.Libp2pConfig{
			ListenAddr: cfg.P2P.ListenAddr,
			Bootstrap:  cfg.P2P.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			return err
		}
		defer lpn.Close()
		net = lpn
		for _, a := range lpn.Addrs() {
			sugar.Infow("p2p_addr", "addr", a)
		}
	} else {
		sugar.Info("p2p_disabled")
	}

	// ---- Matcher ----
	role := subintent.Taker
	if cfg.Node.MakerFees {
		role = subintent.Maker
	}
	app, err := matcher.New(ctx, matcher.Config{
		NetworkID:     cfg.Node.NetworkID,
		SweepInterval: cfg.Node.SweepInterval,
		MaxPoolSize:   cfg.Node.MaxPoolSize,
		FeeRole:       role,
	}, matcher.Deps{
		Directory: client.NewStaticDirectory(venue, ""),
		Store:     store,
		WAL:       wal,
		Net:       net,
		Clock:     util.RealClock{},
		Logger:    sugar,
	})
	if err != nil {
		return err
	}
	if _, err := app.Restore(); err != nil {
		return err
	}
	if lpn != nil {
		if err := lpn.SyncFromPeers(ctx); err != nil {
			sugar.Warnw("p2p_sync_failed", "err", err)
		}
	}

	server := api.NewServer(app, venue, api.ServerConfig{AllowedOrigins: cfg.Node.AllowedOrigins}, sugar)

	sugar.Infow("node_starting",
		"network_id", cfg.Node.NetworkID,
		"api_addr", cfg.Node.APIAddr,
		"fee_role", role.String(),
		"instamint", app.InstamintEnabled())

	t, tctx := tomb.WithContext(ctx)
	t.Go(func() error { return app.Run(tctx) })
	t.Go(func() error { return server.Run(tctx, cfg.Node.APIAddr) })
	<-t.Dying()
	err = t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
