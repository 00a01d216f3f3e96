package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/shadergraph"
	"github.com/gogpu/shadergraph/internal/livesrv"
	"github.com/gogpu/shadergraph/internal/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [SCENE]",
		Short: "Serve live scene updates over a websocket",
		Long: `Serve the live-update endpoint: /live accepts scene and delta messages,
/healthz reports the active result and /metrics exposes Prometheus
metrics. When SCENE is given it is loaded at start and reloaded on every
change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, args)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	assets := &livesrv.AssetStore{}
	c, err := a.compiler(shadergraph.WithMetrics(m), shadergraph.WithAssets(assets))
	if err != nil {
		return err
	}
	d := shadergraph.NewDriver(c)
	log := shadergraph.Logger()

	opts := livesrv.Options{
		Metrics:   m,
		ReadLimit: a.cfg.Server.ReadLimit,
		OnStep: func(out shadergraph.Outcome) {
			if out.Err != nil {
				return
			}
			log.Info("sgc: active plan",
				"passes", len(out.Active.Plan.Passes),
				"signature", fmt.Sprintf("%016x", out.Active.Signature),
				"rebuild", out.Rebuild)
		},
	}
	if a.cfg.Server.Metrics {
		opts.Gatherer = reg
	}
	srv := livesrv.New(d, opts)

	var w *livesrv.Watcher
	if len(args) == 1 {
		w, err = livesrv.NewWatcher(args[0], d, livesrv.WatcherOptions{
			Debounce: a.cfg.Watch.Debounce,
			Assets:   assets,
		})
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx, a.cfg.Server.Addr) })
	g.Go(func() error { return srv.Loop(ctx) })
	if w != nil {
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}
