package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-ref/engine/diag"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/host"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli"
)

// Serve runs a small animated scene and streams the frame diagnostics on /diag.
func Serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	addr := ctx.String("addr")
	if addr == "" {
		addr = cfg.DiagAddr
	}

	stream := diag.NewStream()
	defer stream.Close()

	h, err := newHost(ctx, cfg, renderer.WithStream(stream))
	if err != nil {
		return err
	}
	defer h.Shutdown()
	h.SetRenderFrameLimit(ctx.Float64("fps"))

	mux := http.NewServeMux()
	mux.Handle("/diag", stream)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("diagnostics server: %v", err)
			h.Quit()
		}
	}()
	logger.Noticef("streaming diagnostics on ws://%s/diag", addr)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		<-interrupt
		h.Quit()
	}()

	maxFrames := uint64(ctx.Int("frames"))
	h.SetFrameCallback(orbitScene(h, maxFrames))

	runErr := h.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return errors.Join(runErr, srv.Shutdown(shutdownCtx))
}

// orbitScene returns a frame callback circling a box around the view and emitting particles.
func orbitScene(h host.Host, maxFrames uint64) host.FrameCallback {
	box := &model.Model{
		Name: "models/orbit.mdl",
		Type: model.TypeAlias,
		Mins: mgl32.Vec3{-8, -8, -8},
		Maxs: mgl32.Vec3{8, 8, 8},
	}
	ent := &entity.Entity{Index: 1, Model: box}

	return func(ref renderer.RefInterface, dt float32) {
		t := h.Client().ClientTime()
		ent.Origin = mgl32.Vec3{
			float32(120 * math.Cos(t)),
			float32(120 * math.Sin(t)),
			0,
		}
		ent.Angles[1] = float32(math.Mod(t*90, 360))
		ref.AddEntity(refapi.EntityNormal, ent)
		ref.Particle(ent.Origin, 111, 0.5, 0, 0)

		if maxFrames > 0 && h.Frames()+1 >= maxFrames {
			h.Quit()
		}
	}
}
