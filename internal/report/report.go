// Package report writes benchmark results for humans and scripts.
//
// The CSV sink streams lines as jobs finish:
//
//	<label>,TotalIssues,<n>
//	<label>,AssignedIssues,<n>
//	<label>,<job>,MRR,<value>
//	<label>,<job>,Top1,<value>
//	<label>,<job>,Top5,<value>
//
// The table sink buffers results and renders one table at the end.
package report

import (
	"bufio"
	"fmt"
	"io"

	"triagebench/internal/bench"
	"triagebench/internal/config"
	"triagebench/internal/corpus"
	"triagebench/internal/format"
)

// New returns the sink for a config output format.
func New(w io.Writer, outputFormat string) (bench.Sink, error) {
	switch outputFormat {
	case "", config.FormatCSV:
		return NewCSV(w), nil
	case config.FormatTable:
		return NewTable(w, format.ASCII), nil
	case config.FormatMarkdown:
		return NewTable(w, format.Markdown), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", outputFormat)
	}
}

// CSV is the line-oriented sink. Each job's lines are flushed as soon as
// the job finishes so a long run can be followed with tail.
type CSV struct {
	w     *bufio.Writer
	label string
}

func NewCSV(w io.Writer) *CSV { return &CSV{w: bufio.NewWriter(w)} }

func (c *CSV) Begin(ds corpus.Dataset) error {
	c.label = ds.Label
	fmt.Fprintf(c.w, "%s,TotalIssues,%d\n", c.label, ds.Total)
	fmt.Fprintf(c.w, "%s,AssignedIssues,%d\n", c.label, ds.Len())
	return c.w.Flush()
}

func (c *CSV) JobDone(res *bench.Result) error {
	fmt.Fprintf(c.w, "%s,%s,MRR,%s\n", c.label, res.Job, format.Metric(res.Mean.MRR))
	fmt.Fprintf(c.w, "%s,%s,Top1,%s\n", c.label, res.Job, format.Metric(res.Mean.Top1))
	fmt.Fprintf(c.w, "%s,%s,Top5,%s\n", c.label, res.Job, format.Metric(res.Mean.Top5))
	return c.w.Flush()
}

func (c *CSV) End(error) error { return c.w.Flush() }

// Table renders all results as one table with standard deviations and
// timings.
type Table struct {
	w       io.Writer
	mode    format.Mode
	ds      corpus.Dataset
	results []*bench.Result
}

func NewTable(w io.Writer, mode format.Mode) *Table { return &Table{w: w, mode: mode} }

func (t *Table) Begin(ds corpus.Dataset) error {
	t.ds = ds
	t.results = t.results[:0]
	return nil
}

func (t *Table) JobDone(res *bench.Result) error {
	t.results = append(t.results, res)
	return nil
}

// End writes the table, including the jobs of a failed run. Nothing is
// written when no job completed.
func (t *Table) End(error) error {
	if len(t.results) == 0 {
		return nil
	}
	tb := format.NewTable(t.mode)
	tb.Title(fmt.Sprintf("%s: %d issues, %d assigned", t.ds.Label, t.ds.Total, t.ds.Len()))
	tb.Header("Job", "MRR", "Top1", "Top5", "Trials", "Elapsed")
	for _, r := range t.results {
		tb.Row(r.Job,
			format.MeanSD(r.Mean.MRR, r.StdDev.MRR),
			format.MeanSD(r.Mean.Top1, r.StdDev.Top1),
			format.MeanSD(r.Mean.Top5, r.StdDev.Top5),
			len(r.Trials),
			format.FmtDuration(r.Elapsed))
	}
	tb.Columns(
		format.ColumnConfig{Number: 1, Align: format.AlignLeft},
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
	)
	_, err := fmt.Fprintln(t.w, tb.String())
	return err
}
