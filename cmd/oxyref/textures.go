package main

import (
	"os"

	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/urfave/cli"
)

// Textures loads the named images through the host and prints the texture table.
func Textures(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	ref := h.Ref()
	if ctx.Bool("builtin") {
		for k := texture.SharedDefault; k.Valid(); k++ {
			ref.GetBuiltinTexture(k)
		}
	}
	for _, name := range ctx.Args() {
		pic, ok := h.Client().LoadImage(name)
		if !ok {
			logger.Warningf("%s: not found", name)
			continue
		}
		if !ref.LoadTextureFromBuffer(name, pic, 0, false).Valid() {
			logger.Warningf("%s: rejected", name)
		}
	}

	ref.ShowTextures(os.Stdout)
	return nil
}
