package main

import (
	"github.com/Carmen-Shannon/oxy-ref/engine/config"
	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/host"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli"
)

var logger = log.New("oxyref")

// loadConfig reads the config file named by the global flags and applies the logging level.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	level, _ := cfg.Level()
	log.SetLevel(level)
	setupLogging(ctx)
	return cfg, nil
}

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

// newHost builds a host from the config plus any extra renderer options.
func newHost(ctx *cli.Context, cfg *config.Config, extra ...renderer.RendererBuilderOption) (host.Host, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	g := cfg.Globals()
	g.SetView(mgl32.Vec3{}, mgl32.Vec3{})

	hostOpts := []host.HostBuilderOption{
		host.WithGlobals(g),
		host.WithContext(cfg.Window),
		host.WithGameDirectory(ctx.GlobalString("game")),
		host.WithRendererOptions(append(opts, extra...)...),
	}
	var store *decal.Store
	if cfg.DecalStore != "" {
		if store, err = decal.OpenStore(cfg.DecalStore); err != nil {
			return nil, err
		}
		hostOpts = append(hostOpts, host.WithDecalStore(store))
	}

	h, err := host.NewHost(hostOpts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return h, nil
}
