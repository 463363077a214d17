package corpus

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dataset is the read-only set of assigned issues a benchmark runs on.
type Dataset struct {
	// Label prefixes every output line.
	Label string
	// Total counts every loaded row, assigned or not.
	Total int
	// Issues holds the assigned issues that passed the filter, in dump order.
	Issues []Issue
}

// NewDataset keeps the assigned issues that also match filter (nil keeps
// all of them).
func NewDataset(label string, all []Issue, filter *Filter) (Dataset, error) {
	ds := Dataset{Label: label, Total: len(all)}
	for _, is := range all {
		if !is.Assigned() {
			continue
		}
		if filter != nil {
			ok, err := filter.Match(is)
			if err != nil {
				return Dataset{}, fmt.Errorf("filter issue %s: %w", is.ID, err)
			}
			if !ok {
				continue
			}
		}
		ds.Issues = append(ds.Issues, is)
	}
	return ds, nil
}

// Len is the number of assigned issues.
func (d Dataset) Len() int { return len(d.Issues) }

// Texts returns issue contents in dataset order.
func (d Dataset) Texts() []string {
	out := make([]string, len(d.Issues))
	for i, is := range d.Issues {
		out[i] = is.Content
	}
	return out
}

// Labels returns issue owners in dataset order.
func (d Dataset) Labels() []string {
	out := make([]string, len(d.Issues))
	for i, is := range d.Issues {
		out[i] = is.Owner
	}
	return out
}

// LabelFromWorkingDir names a dataset after the current directory.
func LabelFromWorkingDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return filepath.Base(wd), nil
}
