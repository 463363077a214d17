// Package config holds benchmark settings. Values come from built-in
// defaults, then an optional YAML file, then TRIAGEBENCH_* environment
// variables; the CLI applies its flags last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Job kinds understood by the strategy package.
const (
	KindRandom        = "random"
	KindZeroR         = "zeror"
	KindKNN           = "knn"
	KindNaiveBayes    = "naive-bayes"
	KindOvRNaiveBayes = "ovr-naive-bayes"
	KindSVM           = "svm"
)

// Score outputs a classifier job can rank by.
const (
	ScoreProba    = "proba"
	ScoreLogProba = "log-proba"
)

// Output formats.
const (
	FormatCSV      = "csv"
	FormatTable    = "table"
	FormatMarkdown = "markdown"
)

type Config struct {
	Trials   int       `yaml:"trials"`
	Seed     uint64    `yaml:"seed"` // 0 picks a fresh seed per run
	Divisor  int       `yaml:"divisor"`
	TieBreak string    `yaml:"tie_break"`
	Filter   string    `yaml:"filter"`
	Label    string    `yaml:"label"`
	Features Features  `yaml:"features"`
	Jobs     []JobSpec `yaml:"jobs"`
	Output   Output    `yaml:"output"`
	Log      Log       `yaml:"log"`
}

type Features struct {
	Norm      string `yaml:"norm"`
	Auxiliary string `yaml:"auxiliary"`
}

// JobSpec describes one row of the job table. Fields that do not apply to
// Kind are ignored.
type JobSpec struct {
	Name   string  `yaml:"name"`
	Kind   string  `yaml:"kind"`
	Score  string  `yaml:"score,omitempty"`
	K      int     `yaml:"k,omitempty"`
	Alpha  float64 `yaml:"alpha,omitempty"`
	C      float64 `yaml:"c,omitempty"`
	Epochs int     `yaml:"epochs,omitempty"`
}

type Output struct {
	Format      string `yaml:"format"`
	DB          string `yaml:"db"`
	MetricsFile string `yaml:"metrics_file"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultJobs is the standard job table, in report order.
func DefaultJobs() []JobSpec {
	return []JobSpec{
		{Name: "Random", Kind: KindRandom},
		{Name: "ZeroR", Kind: KindZeroR},
		{Name: "1NN", Kind: KindKNN, K: 1, Score: ScoreProba},
		{Name: "3NN", Kind: KindKNN, K: 3, Score: ScoreProba},
		{Name: "5NN", Kind: KindKNN, K: 5, Score: ScoreProba},
		{Name: "NaiveBayesNB", Kind: KindNaiveBayes, Alpha: 1, Score: ScoreLogProba},
		{Name: "MultiNaiveBayesNB", Kind: KindOvRNaiveBayes, Alpha: 1, Score: ScoreProba},
		{Name: "SVM", Kind: KindSVM, C: 1, Epochs: 10, Score: ScoreLogProba},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Trials:   50,
		Divisor:  10,
		TieBreak: "class-order",
		Features: Features{Norm: "l2"},
		Jobs:     DefaultJobs(),
		Output:   Output{Format: FormatCSV},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults. A jobs list in the file replaces
// the default job table entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRIAGEBENCH_* variables. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	envInt := func(dst *int, key string) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	envUint := func(dst *uint64, key string) {
		if v := getenv(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	envStr := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	envInt(&c.Trials, "TRIAGEBENCH_TRIALS")
	envUint(&c.Seed, "TRIAGEBENCH_SEED")
	envInt(&c.Divisor, "TRIAGEBENCH_DIVISOR")
	envStr(&c.TieBreak, "TRIAGEBENCH_TIE_BREAK")
	envStr(&c.Filter, "TRIAGEBENCH_FILTER")
	envStr(&c.Label, "TRIAGEBENCH_LABEL")
	envStr(&c.Features.Norm, "TRIAGEBENCH_NORM")
	envStr(&c.Output.Format, "TRIAGEBENCH_FORMAT")
	envStr(&c.Output.DB, "TRIAGEBENCH_DB")
	envStr(&c.Output.MetricsFile, "TRIAGEBENCH_METRICS_FILE")
	envStr(&c.Log.Level, "TRIAGEBENCH_LOG_LEVEL")
	envStr(&c.Log.Format, "TRIAGEBENCH_LOG_FORMAT")
	return errors.Join(errs...)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var problems []string
	if c.Trials < 1 {
		problems = append(problems, fmt.Sprintf("trials must be >= 1, got %d", c.Trials))
	}
	if c.Divisor < 2 {
		problems = append(problems, fmt.Sprintf("divisor must be >= 2, got %d", c.Divisor))
	}
	switch c.TieBreak {
	case "", "class-order", "name-desc":
	default:
		problems = append(problems, fmt.Sprintf("unknown tie_break %q", c.TieBreak))
	}
	switch c.Features.Norm {
	case "", "l1", "l2", "none":
	default:
		problems = append(problems, fmt.Sprintf("unknown features.norm %q", c.Features.Norm))
	}
	switch c.Output.Format {
	case "", FormatCSV, FormatTable, FormatMarkdown:
	default:
		problems = append(problems, fmt.Sprintf("unknown output.format %q", c.Output.Format))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log.format %q", c.Log.Format))
	}
	if len(c.Jobs) == 0 {
		problems = append(problems, "no jobs configured")
	}
	seen := make(map[string]bool)
	for i, j := range c.Jobs {
		if j.Name == "" {
			problems = append(problems, fmt.Sprintf("jobs[%d]: missing name", i))
		} else if seen[j.Name] {
			problems = append(problems, fmt.Sprintf("jobs[%d]: duplicate name %q", i, j.Name))
		}
		seen[j.Name] = true
		if j.Kind == KindKNN && j.K < 1 {
			problems = append(problems, fmt.Sprintf("jobs[%d] %s: k must be >= 1", i, j.Name))
		}
		switch j.Score {
		case "", ScoreProba, ScoreLogProba:
		default:
			problems = append(problems, fmt.Sprintf("jobs[%d] %s: unknown score %q", i, j.Name, j.Score))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
