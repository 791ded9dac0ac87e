package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/kheap/heap/alloc"
)

type classInfo struct {
	Index    int    `json:"index"`
	Capacity uint64 `json:"capacity"`
}

type presetInfo struct {
	Name      string      `json:"name"`
	Classes   []classInfo `json:"classes"`
	PoolBytes uint64      `json:"pool_bytes"`
}

func (c *cli) newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the accelerator size classes of a preset",
		Long: `The classes command lists the one-shot pool capacities of the selected
preset, or of every preset with --all.

Example:
  kheapctl classes
  kheapctl classes --preset SmallPools
  kheapctl classes --all --json`,
		Args: cobra.NoArgs,
		RunE: c.runClasses,
	}
	cmd.Flags().Bool("all", false, "List every preset")
	return cmd
}

func (c *cli) runClasses(cmd *cobra.Command, _ []string) error {
	presets := alloc.Presets()
	if !c.v.GetBool("all") {
		cfg, err := alloc.ConfigByName(c.v.GetString("preset"))
		if err != nil {
			return err
		}
		presets = []alloc.Config{cfg}
	}

	infos := make([]presetInfo, 0, len(presets))
	for _, p := range presets {
		info := presetInfo{Name: p.Name, PoolBytes: p.PoolBytes(), Classes: []classInfo{}}
		for i, capacity := range p.PoolClasses {
			info.Classes = append(info.Classes, classInfo{Index: i, Capacity: capacity})
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	if c.v.GetBool("json") {
		return printJSON(out, infos)
	}

	for _, info := range infos {
		c.printInfo(out, "%s (%d classes, %s of pool storage)\n", info.Name, len(info.Classes), formatBytes(info.PoolBytes))
		if len(info.Classes) == 0 {
			c.printInfo(out, "  accelerator disabled\n")
		}
		for _, cl := range info.Classes {
			c.printInfo(out, "  Class %d: %10s  (%d bytes)\n", cl.Index, formatBytes(cl.Capacity), cl.Capacity)
		}
	}
	return nil
}
