package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/kheap/heap/metrics"
)

func (c *cli) newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Run a workload and print Prometheus metrics",
		Long: `The metrics command runs the same workload as simulate, then prints the
heap collector's series in the Prometheus text exposition format.

Example:
  kheapctl metrics --steps 1000
  kheapctl metrics --preset NoPools --backing go`,
		Args: cobra.NoArgs,
		RunE: c.runMetrics,
	}
	addWorkloadFlags(cmd)
	cmd.Flags().Bool("go-collector", false, "Include Go runtime metrics")
	return cmd
}

func (c *cli) runMetrics(cmd *cobra.Command, _ []string) (err error) {
	w, err := workloadFromConfig(c.v)
	if err != nil {
		return err
	}
	h, err := w.openHeap()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, h.Close()) }()

	if _, err := w.run(cmd.Context(), h); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(h, w.Preset)); err != nil {
		return err
	}
	if c.v.GetBool("go-collector") {
		if err := reg.Register(prometheus.NewGoCollector()); err != nil {
			return err
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
