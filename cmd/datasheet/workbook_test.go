package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/vogtb/go-datasheet/packages/dataset"
)

const testWorkbook = `
columns:
  - name: Y
    type: data
    measureType: continuous
    values: [1, 2, 3, 4]
  - name: X
    type: computed
    formula: Y + 1
  - name: F1
    type: filter
    filterNo: 0
    formula: Y > 1
  - name: G
    levels:
      - {value: 1, label: low}
      - {value: 2, label: high}
    values: [low, high, null, 1]
`

func buildTestWorkbook(t *testing.T, src string) *dataset.Dataset {
	t.Helper()
	wb, err := ParseWorkbook([]byte(src))
	if err != nil {
		t.Fatalf("ParseWorkbook() error: %v", err)
	}
	ds, err := wb.Build(logr.Discard())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return ds
}

func TestParseWorkbook(t *testing.T) {
	wb, err := ParseWorkbook([]byte(testWorkbook))
	if err != nil {
		t.Fatalf("ParseWorkbook() error: %v", err)
	}
	if wb.Rows != 4 {
		t.Errorf("Rows = %d, want 4 (inferred from values)", wb.Rows)
	}
	if len(wb.Columns) != 4 {
		t.Fatalf("len(Columns) = %d, want 4", len(wb.Columns))
	}
	if wb.Columns[2].Type != "filter" || wb.Columns[2].Formula != "Y > 1" {
		t.Errorf("Columns[2] = %+v", wb.Columns[2])
	}

	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "columns:\n  - name: A\n    formla: 1\n"},
		{"negative rows", "rows: -1\ncolumns: []\n"},
		{"not yaml", "columns: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWorkbook([]byte(tt.src)); err == nil {
				t.Errorf("ParseWorkbook(%q) succeeded, want error", tt.src)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad column type", "columns:\n  - name: A\n    type: pivot\n"},
		{"bad data type", "columns:\n  - name: A\n    dataType: complex\n"},
		{"duplicate name", "columns:\n  - name: A\n  - name: A\n"},
		{"unknown label", "columns:\n  - name: A\n    levels: [{value: 1, label: a}]\n    values: [b]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb, err := ParseWorkbook([]byte(tt.src))
			if err != nil {
				t.Fatalf("ParseWorkbook() error: %v", err)
			}
			if _, err := wb.Build(logr.Discard()); err == nil {
				t.Errorf("Build() succeeded, want error")
			}
		})
	}
}

func TestEvalTable(t *testing.T) {
	ds := buildTestWorkbook(t, testWorkbook)
	if err := ds.RecalcAll(); err != nil {
		t.Fatalf("RecalcAll() error: %v", err)
	}

	var buf bytes.Buffer
	if err := writeTable(&buf, ds, "csv", false); err != nil {
		t.Fatalf("writeTable() error: %v", err)
	}
	want := "row,Y,X,F1,G\n" +
		"1,1,2,false,low\n" +
		"2,2,3,true,high\n" +
		"3,3,4,true,\n" +
		"4,4,5,true,low\n"
	if buf.String() != want {
		t.Errorf("csv output =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := writeTable(&buf, ds, "csv", true); err != nil {
		t.Fatalf("writeTable() error: %v", err)
	}
	if strings.Contains(buf.String(), "1,1,2") {
		t.Errorf("filtered row printed:\n%s", buf.String())
	}

	buf.Reset()
	if err := writeTable(&buf, ds, "text", false); err != nil {
		t.Fatalf("writeTable() error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "row") || strings.Count(buf.String(), "\n") != 5 {
		t.Errorf("text output =\n%s", buf.String())
	}

	if err := writeTable(&buf, ds, "xml", false); err == nil {
		t.Errorf("writeTable(xml) succeeded, want error")
	}
}

func TestBuildFilterGroups(t *testing.T) {
	ds := buildTestWorkbook(t, `
columns:
  - name: Y
    values: [1, 2, 3, 4]
  - name: F0
    type: filter
    formula: Y > 2
  - name: F1
    type: filter
    filterNo: 1
  - name: F2
    type: filter
    filterNo: 1
    formula: Y != 3
`)
	if err := ds.RecalcAll(); err != nil {
		t.Fatalf("RecalcAll() error: %v", err)
	}

	tests := []struct {
		name     string
		excluded []bool
		values   []int64
	}{
		{"F1", []bool{true, true, false, false}, []int64{0, 0, 1, 1}},
		{"F2", []bool{true, true, false, false}, []int64{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := ds.ColumnByName(tt.name)
			if !ok {
				t.Fatalf("no column %s", tt.name)
			}
			for row, excluded := range tt.excluded {
				got := c.FValue(row, false)
				if got.Excluded != excluded {
					t.Errorf("%s[%d] excluded = %v, want %v", tt.name, row, got.Excluded, excluded)
				}
				if !excluded && got.Int != tt.values[row] {
					t.Errorf("%s[%d] = %d, want %d", tt.name, row, got.Int, tt.values[row])
				}
			}
		})
	}
}

func TestCheckAndOrder(t *testing.T) {
	ds := buildTestWorkbook(t, `
columns:
  - name: B
    type: computed
    formula: A * 2
  - name: A
    values: [1, 2]
  - name: C
    type: computed
    formula: NOPE(A)
`)

	var buf bytes.Buffer
	if err := writeStatus(&buf, ds); err != nil {
		t.Fatalf("writeStatus() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"B", "ok", "C", "error", "'NOPE' is not a known function"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := writeOrder(&buf, ds); err != nil {
		t.Fatalf("writeOrder() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "1. A <- []" || lines[1] != "2. B <- [A]" {
		t.Errorf("order output =\n%s", buf.String())
	}
}

func TestGraphOutput(t *testing.T) {
	ds := buildTestWorkbook(t, testWorkbook)
	out := ds.DotGraph().String()
	if !strings.Contains(out, "digraph") || !strings.Contains(out, "X = Y + 1") {
		t.Errorf("graph output =\n%s", out)
	}
}
