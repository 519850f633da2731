package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Decals prints the levels of the decal store with their saved decal counts.
func Decals(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	path := ctx.String("store")
	if path == "" {
		path = cfg.DecalStore
	}
	if path == "" {
		return errors.New("no decal store configured")
	}

	store, err := decal.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	levels, err := store.Levels()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Level", "Decals", "Permanent"})
	total := 0
	for _, level := range levels {
		list, err := store.Load(level)
		if err != nil {
			return err
		}
		permanent := 0
		for _, e := range list {
			if e.Flags&decal.FlagPermanent != 0 {
				permanent++
			}
		}
		total += len(list)
		table.Append([]string{level, fmt.Sprintf("%d", len(list)), fmt.Sprintf("%d", permanent)})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total), ""})
	table.Render()
	return nil
}
