package corpus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const sampleDump = `{
  "total_rows": 3,
  "rows": [
    {"id": "1", "doc": {"_id": "1", "owner": "alice", "content": "Printer on floor 2 jams"}},
    {"id": "2", "doc": {"_id": "2", "owner": "", "content": "Nobody owns this one"}},
    {"id": "3", "doc": {"_id": "3", "owner": "bob", "content": "VPN drops every hour"}}
  ]
}`

func TestParse(t *testing.T) {
	got, err := Parse([]byte(sampleDump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Issue{
		{ID: "1", Owner: "alice", Content: "Printer on floor 2 jams"},
		{ID: "2", Owner: "", Content: "Nobody owns this one"},
		{ID: "3", Owner: "bob", Content: "VPN drops every hour"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"not json", `{"rows": [`, ErrInvalidJSON},
		{"no rows", `{"docs": []}`, ErrNoRows},
		{"rows not array", `{"rows": {}}`, ErrNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, err := Parse([]byte(`{"rows": [{"doc": {"_id": "1", "content": "x"}}]}`))
	if err == nil || err.Error() != "row 0: missing doc.owner" {
		t.Errorf("missing owner err = %v", err)
	}
}

func TestParse_NullOwnerIsUnassigned(t *testing.T) {
	got, err := Parse([]byte(`{"rows": [{"doc": {"_id": "1", "owner": null, "content": "x"}}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got[0].Assigned() {
		t.Errorf("null owner should be unassigned, got %+v", got[0])
	}
}

func TestLoad_Compressed(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write([]byte(sampleDump)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zst := enc.EncodeAll([]byte(sampleDump), nil)
	enc.Close()

	files := map[string][]byte{
		"plain.json":    []byte(sampleDump),
		"dump.json.gz":  gz.Bytes(),
		"dump.json.zst": zst,
	}
	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			issues, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(issues) != 3 {
				t.Errorf("got %d issues, want 3", len(issues))
			}
			text, err := ReadText(path)
			if err != nil || text != sampleDump {
				t.Errorf("ReadText = %d bytes, %v; want the decompressed dump", len(text), err)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "large.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewDataset_KeepsAssigned(t *testing.T) {
	all, _ := Parse([]byte(sampleDump))
	ds, err := NewDataset("proj", all, nil)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	if ds.Total != 3 || ds.Len() != 2 {
		t.Fatalf("Total=%d Len=%d, want 3 and 2", ds.Total, ds.Len())
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, ds.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Printer on floor 2 jams", "VPN drops every hour"}, ds.Texts()); diff != "" {
		t.Errorf("Texts mismatch (-want +got):\n%s", diff)
	}
}

func TestNewDataset_Filter(t *testing.T) {
	all, _ := Parse([]byte(sampleDump))
	f, err := CompileFilter(`issue.content.contains("VPN")`)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	ds, err := NewDataset("proj", all, f)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	if diff := cmp.Diff([]string{"bob"}, ds.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if ds.Total != 3 {
		t.Errorf("Total = %d, filter must not change it", ds.Total)
	}
}

func TestCompileFilter(t *testing.T) {
	if f, err := CompileFilter(""); f != nil || err != nil {
		t.Errorf("empty filter = %v, %v; want nil, nil", f, err)
	}
	if _, err := CompileFilter(`issue.content.size( >`); err == nil {
		t.Error("expected compile error")
	}

	f, err := CompileFilter(`issue.owner`)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if _, err := f.Match(Issue{Owner: "alice"}); err == nil {
		t.Error("expected error for non-bool filter result")
	}
}
