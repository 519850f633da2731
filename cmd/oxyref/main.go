package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "oxyref"
	app.Usage = "drive the oxy-ref renderer module from a reference host"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "config file (default: oxyref.json next to the executable)",
		},
		cli.StringFlag{
			Name:  "game, g",
			Value: ".",
			Usage: "game directory images are loaded from",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "conform",
			Usage: "run the scripted conformance frames against the renderer",
			Description: `
Negotiate and initialize the renderer, then drive it through a fixed sequence of
frames: legal exchanges that must succeed and illegal ones that must be reported
as protocol violations. A table of results is printed; the exit status is non-zero
if any check failed.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "shot",
					Usage: "write a screenshot of the last frame to this file",
				},
			},
			Action: Conform,
		},
		{
			Name:      "textures",
			Usage:     "load images through the host and list the live textures",
			ArgsUsage: "image1 image2 ...",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "builtin",
					Usage: "also acquire every shared built-in texture",
				},
			},
			Action: Textures,
		},
		{
			Name:  "serve",
			Usage: "run frames and stream per-frame diagnostics over a websocket",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "addr",
					Usage: "listen address (default: diag_addr from the config)",
				},
				cli.Float64Flag{
					Name:  "fps",
					Value: 60,
					Usage: "render frame limit",
				},
				cli.IntFlag{
					Name:  "frames",
					Usage: "stop after this many frames (0 = until interrupted)",
				},
			},
			Action: Serve,
		},
		{
			Name:  "decals",
			Usage: "list the saved decal lists",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "store",
					Usage: "decal store file (default: decal_store from the config)",
				},
			},
			Action: Decals,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
