// Package corpus loads issue dumps and builds the immutable Dataset the
// benchmark runs against.
//
// The input is a view dump of the form
//
//	{"rows": [{"doc": {"_id": "...", "owner": "...", "content": "..."}}, ...]}
//
// optionally gzip (.gz) or zstd (.zst) compressed.
package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"

	"triagebench/internal/logging"
)

var (
	// ErrNoRows is returned when the document has no top-level rows array.
	ErrNoRows = errors.New("corpus: no rows array")
	// ErrInvalidJSON is returned when the input is not well-formed JSON.
	ErrInvalidJSON = errors.New("corpus: invalid JSON")
)

// Issue is one record of the dump. An empty Owner means unassigned.
type Issue struct {
	ID      string `json:"_id"`
	Owner   string `json:"owner"`
	Content string `json:"content"`
}

// Assigned reports whether the issue has an owner.
func (i Issue) Assigned() bool { return i.Owner != "" }

// Load reads and parses the dump at path.
func Load(path string) ([]Issue, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	issues, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	logging.New("corpus").Info("loaded corpus",
		"path", path,
		"size", humanize.Bytes(uint64(len(data))),
		"rows", humanize.Comma(int64(len(issues))))
	return issues, nil
}

// ReadText returns the whole (possibly compressed) file at path as text.
func ReadText(path string) (string, error) {
	rc, err := Open(path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Open opens path for reading, decompressing by file extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		return &stackedCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
	}
	return f, nil
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Parse extracts issues from a dump. Every row must carry doc._id,
// doc.owner and doc.content; a null owner reads as unassigned.
func Parse(data []byte) ([]Issue, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	rows := gjson.GetBytes(data, "rows")
	if !rows.IsArray() {
		return nil, ErrNoRows
	}

	var (
		issues []Issue
		perr   error
		n      int
	)
	rows.ForEach(func(_, row gjson.Result) bool {
		doc := row.Get("doc")
		for _, field := range []string{"_id", "owner", "content"} {
			if !doc.Get(field).Exists() {
				perr = fmt.Errorf("row %d: missing doc.%s", n, field)
				return false
			}
		}
		issues = append(issues, Issue{
			ID:      doc.Get("_id").String(),
			Owner:   doc.Get("owner").String(),
			Content: doc.Get("content").String(),
		})
		n++
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return issues, nil
}
