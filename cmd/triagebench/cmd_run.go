package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"triagebench/internal/bench"
	"triagebench/internal/config"
	"triagebench/internal/corpus"
	"triagebench/internal/features"
	"triagebench/internal/logging"
	"triagebench/internal/rank"
	"triagebench/internal/report"
	"triagebench/internal/store"
	"triagebench/internal/strategy"
	"triagebench/internal/telemetry"
)

// defaultCorpus is read when no path argument is given.
const defaultCorpus = "large.json"

type runFlags struct {
	config      string
	trials      int
	seed        uint64
	divisor     int
	jobs        []string
	format      string
	label       string
	tieBreak    string
	filter      string
	norm        string
	aux         string
	db          string
	metricsFile string
	logLevel    string
	logFormat   string
	workers     int
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "YAML config file (defaults, then file, then TRIAGEBENCH_* env, then flags)")
	fl.IntVarP(&f.trials, "trials", "n", config.Default().Trials, "Random splits averaged per job")
	fl.Uint64Var(&f.seed, "seed", 0, "Seed for splits and randomised strategies (0 = fresh seed, logged)")
	fl.IntVar(&f.divisor, "divisor", config.Default().Divisor, "Test set is 1/divisor of the assigned issues")
	fl.StringSliceVar(&f.jobs, "jobs", nil, "Comma-separated job names to run (default: all configured jobs)")
	fl.StringVarP(&f.format, "format", "f", config.FormatCSV, "Output format (csv, table, markdown)")
	fl.StringVar(&f.label, "label", "", "Prefix for output lines (default: working directory name)")
	fl.StringVar(&f.tieBreak, "tie-break", "class-order", "Order of equally scored owners (class-order, name-desc)")
	fl.StringVar(&f.filter, "filter", "", "CEL expression over issue.id, issue.owner, issue.content")
	fl.StringVar(&f.norm, "norm", "l2", "Term-frequency row normalisation (l2, l1, none)")
	fl.StringVar(&f.aux, "aux", "", "Extra text file whose words join the vocabulary")
	fl.StringVar(&f.db, "db", "", "SQLite file to record runs and trials in")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to path")
	fl.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fl.StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	fl.IntVar(&f.workers, "workers", 0, "Parallel workers per model fit (0 = GOMAXPROCS)")
}

// resolveConfig layers defaults, the config file, the environment and any
// flags the user set explicitly.
func (f *runFlags) resolveConfig(cmd *cobra.Command, getenv func(string) string) (config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("trials") {
		cfg.Trials = f.trials
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("divisor") {
		cfg.Divisor = f.divisor
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("label") {
		cfg.Label = f.label
	}
	if changed("tie-break") {
		cfg.TieBreak = f.tieBreak
	}
	if changed("filter") {
		cfg.Filter = f.filter
	}
	if changed("norm") {
		cfg.Features.Norm = f.norm
	}
	if changed("aux") {
		cfg.Features.Auxiliary = f.aux
	}
	if changed("db") {
		cfg.Output.DB = f.db
	}
	if changed("metrics-file") {
		cfg.Output.MetricsFile = f.metricsFile
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return cfg, cfg.Validate()
}

func runBench(cmd *cobra.Command, args []string, f *runFlags) (err error) {
	cfg, err := f.resolveConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
	logger := logging.New("cli")

	path := defaultCorpus
	if len(args) > 0 {
		path = args[0]
	}
	label := cfg.Label
	if label == "" {
		if label, err = corpus.LabelFromWorkingDir(); err != nil {
			return err
		}
	}

	ds, err := loadDataset(path, label, cfg.Filter)
	if err != nil {
		return err
	}
	opts, err := strategyOptions(cfg, f.workers)
	if err != nil {
		return err
	}
	jobs, err := strategy.FromConfig(cfg.Jobs, opts)
	if err != nil {
		return err
	}
	if jobs, err = strategy.Select(jobs, f.jobs); err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger.Info("benchmark seed", "seed", seed, "replay", fmt.Sprintf("--seed %d", seed))

	out, err := report.New(cmd.OutOrStdout(), cfg.Output.Format)
	if err != nil {
		return err
	}
	sinks := []bench.Sink{out}
	if cfg.Output.DB != "" {
		st, openErr := store.Open(cfg.Output.DB)
		if openErr != nil {
			return openErr
		}
		defer func() { err = errors.Join(err, st.Close()) }()
		sinks = append(sinks, &store.Recorder{Store: st, Seed: seed, Trials: cfg.Trials, TieBreak: opts.Ranker.TieBreak.String()})
	}
	if cfg.Output.MetricsFile != "" {
		sinks = append(sinks, telemetry.NewTextfile(cfg.Output.MetricsFile))
	}

	b := &bench.Benchmark{
		Jobs: jobs,
		Config: bench.RunConfig{
			Trials:  cfg.Trials,
			Divisor: cfg.Divisor,
			Rand:    rand.New(rand.NewPCG(seed, seed)),
		},
		Sinks: sinks,
	}
	_, err = b.Run(ds)
	return err
}

func loadDataset(path, label, filterExpr string) (corpus.Dataset, error) {
	issues, err := corpus.Load(path)
	if err != nil {
		return corpus.Dataset{}, err
	}
	filter, err := corpus.CompileFilter(filterExpr)
	if err != nil {
		return corpus.Dataset{}, err
	}
	ds, err := corpus.NewDataset(label, issues, filter)
	if err != nil {
		return corpus.Dataset{}, err
	}
	if filter != nil {
		logging.New("cli").Info("filter applied", "filter", filter.String(), "kept", ds.Len())
	}
	return ds, nil
}

func strategyOptions(cfg config.Config, workers int) (strategy.Options, error) {
	tb, err := rank.ParseTieBreak(cfg.TieBreak)
	if err != nil {
		return strategy.Options{}, err
	}
	norm, err := features.ParseNorm(cfg.Features.Norm)
	if err != nil {
		return strategy.Options{}, err
	}
	opts := strategy.Options{
		Features: features.Options{Norm: norm},
		Ranker:   rank.Ranker{TieBreak: tb},
		Workers:  workers,
	}
	if aux := strings.TrimSpace(cfg.Features.Auxiliary); aux != "" {
		text, err := corpus.ReadText(aux)
		if err != nil {
			return strategy.Options{}, fmt.Errorf("auxiliary vocabulary: %w", err)
		}
		opts.Aux = text
	}
	return opts, nil
}
