package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/odvcencio/shade/analysis"
	"github.com/odvcencio/shade/bridge"
	"github.com/odvcencio/shade/config"
	"github.com/odvcencio/shade/document"
	"github.com/odvcencio/shade/fold"
	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/hostrpc"
	"github.com/odvcencio/shade/logging"
	"github.com/odvcencio/shade/region"
	"github.com/odvcencio/shade/state"
	"github.com/odvcencio/shade/visibility"
)

type options struct {
	configPath string
	listen     string
	workspace  string
	service    string
}

func run(ctx context.Context, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel())

	store, err := state.Open(opts.workspace)
	if err != nil {
		return err
	}

	docs := document.NewStore()
	srv := hostrpc.NewServer(logger.With("component", "hostrpc"))
	ctrl := bridge.New(bridge.Options{
		Editor:         srv,
		Documents:      docs,
		Settings:       cfg,
		State:          store,
		Logger:         logger.With("component", "bridge"),
		FoldAckTimeout: cfg.FoldAckTimeout(),
	})
	defer ctrl.Teardown()

	command, args := cfg.ServiceCommand()
	if opts.service != "" {
		command, args = opts.service, nil
	}
	svc := analysis.Connect(ctx, logger.With("component", "analysis"), command, args...)
	defer svc.Close()
	if err := svc.Initialize(ctx, opts.workspace); err != nil {
		logger.Warn("analysis service initialize failed", "err", err)
	}

	svc.OnInactiveRegions(func(path string, regions region.Set) {
		ctrl.HandleRegions(ctx, path, regions)
	})
	ctrl.Provider().OnChanged(srv.NotifyFoldingChanged)
	merged := bridge.NewMergedFolding(svc, ctrl.Provider())

	srv.SetHandlers(hostrpc.Handlers{
		ViewOpened: func(ctx context.Context, v host.View, text string) {
			docs.Open(v.Path, v.Language, text)
			if err := svc.DidOpen(v.Path, v.Language, text); err != nil {
				logger.Debug("didOpen not delivered", "path", v.Path, "err", err)
			}
			ctrl.HandleActiveViewChange(ctx)
		},
		ViewClosed: func(ctx context.Context, v host.View) {
			// Keep the mirror while any other view shows the document;
			// the region cache is kept regardless.
			key := v.Key()
			for _, other := range srv.VisibleViews() {
				if other.Key() == key {
					return
				}
			}
			docs.Close(key)
		},
		ViewActivated: func(ctx context.Context) {
			ctrl.HandleActiveViewChange(ctx)
		},
		TextChanged: func(ctx context.Context, path, text string) {
			if err := svc.DidChange(path, text); err != nil {
				logger.Debug("didChange not delivered", "path", path, "err", err)
			}
			// The controller swaps the mirror text itself, inside the
			// unfold/redecorate/refold sequence.
			ctrl.HandleTextChange(ctx, path, text)
		},
		Toggle: func(ctx context.Context) visibility.Mode {
			return ctrl.Toggle(ctx)
		},
		FoldingRanges: func(ctx context.Context, path string) ([]fold.Block, error) {
			return merged.FoldingRanges(ctx, path)
		},
		Shutdown: func(context.Context) {
			cancel()
		},
	})

	if err := config.Watch(ctx, cfg, logger.With("component", "config"), func() {
		ctrl.HandleConfigChange(ctx)
	}); err != nil {
		logger.Warn("config watching disabled", "err", err)
	}

	addr := cfg.Listen()
	if opts.listen != "" {
		addr = opts.listen
	}
	server := &http.Server{Addr: addr, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("shade listening", "addr", addr, "mode", ctrl.Mode())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
