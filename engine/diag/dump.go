package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/olekukonko/tablewriter"
)

// ShowTextures writes a table of the given live textures.
//
// Parameters:
//   - w: the destination
//   - list: the textures, usually texture.Registry.List()
func ShowTextures(w io.Writer, list []texture.Info) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Handle", "Name", "Size", "Format", "Flags", "Shared", "Refs"})

	var texels int
	for _, t := range list {
		texels += t.Width * t.Height
		shared := t.Shared.String()
		refs := ""
		if shared != "" {
			refs = fmt.Sprintf("%d", t.Refs)
		}
		table.Append([]string{
			fmt.Sprintf("%d", uint32(t.Handle)),
			t.Name,
			fmt.Sprintf("%dx%d", t.Width, t.Height),
			t.Format.String(),
			t.Flags.String(),
			shared,
			refs,
		})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", len(list)), fmt.Sprintf("%d texels", texels), "", "", "", ""})
	table.Render()
}

// EfragIndex is the part of the scene ShowTree reads.
type EfragIndex interface {
	LeafEntities(leaf int) []*entity.Entity
}

// ShowTree writes the world BSP tree, one line per node and leaf, with the entities linked into
// each leaf.
//
// Parameters:
//   - w: the destination
//   - world: the world brush model
//   - efrags: the efrag index; may be nil
//
// Returns:
//   - error: error if world has no brush data or writing fails
func ShowTree(w io.Writer, world *model.Model, efrags EfragIndex) error {
	if world == nil || world.Brush == nil {
		return fmt.Errorf("diag: no world model")
	}
	br := world.Brush
	if _, err := fmt.Fprintf(w, "%s: %d nodes, %d leafs\n", world.Name, len(br.Nodes), len(br.Leafs)); err != nil {
		return err
	}
	if len(br.Nodes) == 0 {
		for i := range br.Leafs {
			if err := writeLeaf(w, br, i, 1, efrags); err != nil {
				return err
			}
		}
		return nil
	}
	return writeNode(w, br, 0, 1, efrags, make(map[int]bool))
}

func writeNode(w io.Writer, br *model.Brush, n, depth int, efrags EfragIndex, seen map[int]bool) error {
	if n < 0 || n >= len(br.Nodes) || seen[n] {
		return nil
	}
	seen[n] = true
	node := &br.Nodes[n]
	pad := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%snode %d plane (%g %g %g) %g\n", pad, n,
		node.Plane.Normal[0], node.Plane.Normal[1], node.Plane.Normal[2], node.Plane.Distance); err != nil {
		return err
	}
	for _, c := range node.Children {
		var err error
		if c < 0 {
			err = writeLeaf(w, br, -(c + 1), depth+1, efrags)
		} else {
			err = writeNode(w, br, c, depth+1, efrags, seen)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeLeaf(w io.Writer, br *model.Brush, l, depth int, efrags EfragIndex) error {
	if l < 0 || l >= len(br.Leafs) {
		return nil
	}
	leaf := &br.Leafs[l]
	line := fmt.Sprintf("%sleaf %d contents %d surfaces %d", strings.Repeat("  ", depth), l, leaf.Contents, len(leaf.Surfaces))
	if efrags != nil {
		if ents := efrags.LeafEntities(l); len(ents) > 0 {
			ids := make([]string, len(ents))
			for i, e := range ents {
				ids[i] = fmt.Sprintf("%d", e.Index)
			}
			line += " efrags [" + strings.Join(ids, " ") + "]"
		}
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
