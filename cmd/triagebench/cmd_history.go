package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"triagebench/internal/format"
	"triagebench/internal/store"
)

var errNoDB = errors.New("--db is required")

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		runID  int64
		mode   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show benchmark runs recorded with --db",
		Long: `history lists the runs stored in a results database. With --run it shows
that run's per-job scores instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if dbPath == "" {
				return errNoDB
			}
			m, err := format.ParseMode(mode)
			if err != nil {
				return err
			}
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, st.Close()) }()

			var out string
			if runID > 0 {
				out, err = runTable(st, runID, m)
			} else {
				out, err = runsTable(st, m)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "", "SQLite results database")
	f.Int64Var(&runID, "run", 0, "Show the jobs of this run")
	f.StringVarP(&mode, "format", "f", "table", "Output format (table, markdown, csv)")
	return cmd
}

func runsTable(st store.Store, m format.Mode) (string, error) {
	runs, err := st.ListRuns()
	if err != nil {
		return "", err
	}
	tb := format.NewTable(m)
	tb.Header("Run", "Dataset", "Issues", "Assigned", "Trials", "Seed", "Tie-break", "Started", "Ended")
	for _, r := range runs {
		ended := r.EndedAt
		if ended == "" {
			ended = "incomplete"
		}
		tb.Row(r.ID, r.Dataset, r.TotalIssues, r.AssignedIssues, r.Trials, r.Seed, r.TieBreak, r.StartedAt, ended)
	}
	return tb.String(), nil
}

func runTable(st store.Store, id int64, m format.Mode) (string, error) {
	run, err := st.GetRun(id)
	if err != nil {
		return "", err
	}
	if run == nil {
		return "", fmt.Errorf("run %d not found", id)
	}
	jobs, err := st.ListJobResults(id)
	if err != nil {
		return "", err
	}
	tb := format.NewTable(m)
	tb.Title(fmt.Sprintf("run %d: %s, seed %d", run.ID, run.Dataset, run.Seed))
	tb.Header("Job", "MRR", "Top1", "Top5", "Trials", "Elapsed")
	for _, j := range jobs {
		tb.Row(j.Job,
			format.MeanSD(j.Mean.MRR, j.StdDev.MRR),
			format.MeanSD(j.Mean.Top1, j.StdDev.Top1),
			format.MeanSD(j.Mean.Top5, j.StdDev.Top5),
			len(j.Trials),
			fmt.Sprintf("%dms", j.ElapsedMS))
	}
	return tb.String(), nil
}
