package main

import (
	"math"
	"os"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/dataset"
	"github.com/vogtb/go-datasheet/packages/storage"
)

// Workbook is the on-disk description of a dataset
type Workbook struct {
	Rows    int          `json:"rows,omitempty"`
	Columns []ColumnSpec `json:"columns"`
}

type ColumnSpec struct {
	Name        string      `json:"name"`
	Type        string      `json:"type,omitempty"`
	DataType    string      `json:"dataType,omitempty"`
	MeasureType string      `json:"measureType,omitempty"`
	Description string      `json:"description,omitempty"`
	Hidden      bool        `json:"hidden,omitempty"`
	Values      []any       `json:"values,omitempty"`
	Levels      []LevelSpec `json:"levels,omitempty"`
	Formula     string      `json:"formula,omitempty"`
	FilterNo    int         `json:"filterNo,omitempty"`
	Active      *bool       `json:"active,omitempty"`
}

type LevelSpec struct {
	Value       int32  `json:"value"`
	Label       string `json:"label"`
	ImportValue string `json:"importValue,omitempty"`
}

func LoadWorkbook(fname string) (*Workbook, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "read workbook %s", fname)
	}
	return ParseWorkbook(data)
}

// ParseWorkbook decodes a YAML (or JSON) workbook. unknown keys are
// rejected so that typos in column specs do not go unnoticed.
func ParseWorkbook(data []byte) (*Workbook, error) {
	var wb Workbook
	if err := yaml.UnmarshalStrict(data, &wb); err != nil {
		return nil, errors.Wrap(err, "parse workbook")
	}
	if wb.Rows < 0 {
		return nil, errors.Errorf("parse workbook: negative row count %d", wb.Rows)
	}
	for _, spec := range wb.Columns {
		if len(spec.Values) > wb.Rows {
			wb.Rows = len(spec.Values)
		}
	}
	return &wb, nil
}

// Build creates the dataset described by the workbook. columns are all
// added before any formula is set so formulas may refer to columns
// further right.
func (wb *Workbook) Build(log logr.Logger) (*dataset.Dataset, error) {
	ds := dataset.New(dataset.WithLogger(log))
	ds.SetRowCount(wb.Rows)

	cols := make([]*dataset.Column, len(wb.Columns))
	for i, spec := range wb.Columns {
		c, err := addColumn(ds, spec)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d (%s)", i, spec.Name)
		}
		cols[i] = c
	}

	for i, spec := range wb.Columns {
		if spec.Formula == "" {
			continue
		}
		cols[i].SetFormula(spec.Formula)
		log.V(2).Info("formula set", "column", spec.Name, "status", cols[i].FormulaStatus().String())
	}
	return ds, nil
}

func addColumn(ds *dataset.Dataset, spec ColumnSpec) (*dataset.Column, error) {
	kind := spec.Type
	if kind == "" {
		kind = "data"
	}
	ct, err := storage.ParseColumnType(kind)
	if err != nil {
		return nil, err
	}
	dt, err := storage.ParseDataType(spec.DataType)
	if err != nil {
		return nil, err
	}
	mt, err := storage.ParseMeasureType(spec.MeasureType)
	if err != nil {
		return nil, err
	}

	c, err := ds.AddColumn(spec.Name, ct)
	if err != nil {
		return nil, err
	}

	var levels []storage.Level
	for _, l := range spec.Levels {
		levels = append(levels, storage.Level{Value: l.Value, Label: l.Label, ImportValue: l.ImportValue})
	}
	// filters are always integer/nominal
	if ct == storage.ColumnTypeFilter {
		c.SetFilterNo(spec.FilterNo)
	} else {
		c.Change(dt, mt, levels)
	}
	c.SetDescription(spec.Description)
	c.SetHidden(spec.Hidden)
	if spec.Active != nil {
		c.SetActive(*spec.Active)
	}

	for row, raw := range spec.Values {
		v, ok, err := toValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", row)
		}
		if !ok {
			continue
		}
		if err := c.SetValue(row, v); err != nil {
			return nil, errors.Wrapf(err, "row %d", row)
		}
	}
	c.ResetChangeCount()
	return c, nil
}

// toValue converts a decoded YAML scalar. null cells report false and are
// left missing.
func toValue(raw any) (compute.Value, bool, error) {
	switch v := raw.(type) {
	case nil:
		return compute.Value{}, false, nil
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return compute.Int(int64(v)), true, nil
		}
		return compute.Float(v), true, nil
	case string:
		return compute.Text(v), true, nil
	case bool:
		return compute.Bool(v), true, nil
	}
	return compute.Value{}, false, errors.Errorf("unsupported cell value %v (%T)", raw, raw)
}
