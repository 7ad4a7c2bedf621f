package commands

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func (a *App) installBuild() error {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run one build cycle",
		Long: `Fetch the content of every configured content type, then write the JSON artifacts and the
rendered items to the output directory.

If the content cannot be fetched, nothing is written. Items which fail to render are reported,
the other artifacts are still written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.build(cmd)
		},
	}
	a.cmd.AddCommand(cmd)
	return nil
}

func (a *App) build(cmd *cobra.Command) error {
	b, err := a.newBuilder(prometheus.NewRegistry())
	a.setReady()
	if err != nil {
		return err
	}

	s, err := b.Build(a.ctx, false)
	if len(s.Assets) > 0 {
		out := a.config.Output
		if !filepath.IsAbs(out) {
			out = filepath.Join(a.config.Root, out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d artifacts to %s\n", len(s.Assets), out)
	}
	return err
}
