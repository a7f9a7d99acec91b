package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/notargets/DGTransport/config"
	"github.com/notargets/DGTransport/logging"
	"github.com/notargets/DGTransport/manager"
	"github.com/notargets/DGTransport/store"
	"github.com/notargets/DGTransport/timing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dgtransport",
		Short: "Discontinuous Galerkin neutron transport on triangles",
		Long: `dgtransport solves multigroup discrete ordinates transport problems on
two dimensional triangular meshes.

Available subcommands:
  solve - Run the problem described by a YAML input
  runs  - List the runs kept in a result store
  show  - Print a stored run`,
		SilenceUsage: true,
	}
	root.AddCommand(newSolveCmd(), newRunsCmd(), newShowCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var (
		input   string
		noStore bool
		dump    bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run the problem described by a YAML input",
		Long: `Run a fixed source, eigenvalue or transient problem.

DGT_TOLERANCE, DGT_MAX_ITERATIONS, DGT_WORKERS, DGT_LOG_LEVEL and DGT_STORE
override the input file. The result is saved when a store is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, input, !noStore, dump)
		},
	}
	cmd.Flags().StringVarP(&input, "config", "c", "", "YAML input file")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the result")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the full result tree")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runSolve(cmd *cobra.Command, input string, save, dump bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := config.Load(input)
	if err != nil {
		return err
	}
	sink, err := logging.NewSink(f.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	in, err := f.Build(ctx)
	if err != nil {
		return err
	}
	timers := timing.NewRegistry()
	res, err := manager.New(manager.WithSink(sink), manager.WithTimers(timers)).Run(in)
	if res == nil {
		return err
	}
	runErr := err

	ds := res.DataSet()
	out := cmd.OutOrStdout()
	if dump {
		fmt.Fprint(out, formatTree(ds))
	}
	writeReport(out, ds)

	if save && f.Store != "" {
		st, err := store.Open(ctx, f.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveResult(ctx, res.RunID.String(), res.Summary(), ds); err != nil {
			// A failed save does not invalidate the solve
			sink.Logger().Warn("save result", zap.Error(err))
		} else {
			fmt.Fprintf(out, "saved run %s to %s\n", res.RunID, f.Store)
		}
	}
	return runErr
}

func newRunsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs kept in a result store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := store.Open(ctx, path)
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.ListRuns(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-14s  %s\n", r.ID, humanize.Time(r.CreatedAt), r.Summary)
			}
			fmt.Fprintf(out, "%s runs\n", humanize.Comma(int64(len(runs))))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "store", "", "SQLite result store")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func newShowCmd() *cobra.Command {
	var (
		path, run string
		dump      bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := store.Open(ctx, path)
			if err != nil {
				return err
			}
			defer st.Close()
			ds, err := st.LoadDataSet(ctx, run)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dump {
				fmt.Fprint(out, formatTree(ds))
			}
			writeReport(out, ds)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "store", "", "SQLite result store")
	cmd.Flags().StringVar(&run, "run", "", "run id")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the full result tree")
	_ = cmd.MarkFlagRequired("store")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
