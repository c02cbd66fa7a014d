package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/vogtb/go-datasheet/packages/dataset"
)

// rows returns the header and the display form of every row. filtered
// rows are dropped when hideFiltered is set.
func rows(ds *dataset.Dataset, hideFiltered bool) ([]string, [][]string) {
	cols := ds.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, "row")
	for _, c := range cols {
		header = append(header, c.Name())
	}

	var body [][]string
	for row := 0; row < ds.RowCount(); row++ {
		if hideFiltered && ds.IsRowFiltered(row) {
			continue
		}
		line := make([]string, 0, len(cols)+1)
		line = append(line, strconv.Itoa(row+1))
		for _, c := range cols {
			line = append(line, c.Value(row).String())
		}
		body = append(body, line)
	}
	return header, body
}

func writeTable(w io.Writer, ds *dataset.Dataset, format string, hideFiltered bool) error {
	header, body := rows(ds, hideFiltered)
	switch format {
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(body); err != nil {
			return err
		}
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, line := range body {
			fmt.Fprintln(tw, strings.Join(line, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown format %q", format)
	}
	return nil
}

// writeStatus lists every formula column with its compile status
func writeStatus(w io.Writer, ds *dataset.Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\ttype\tdata type\tstatus\tformula\tmessage")
	for _, c := range ds.Columns() {
		if c.Formula() == "" && c.FormulaStatus() == dataset.FormulaEmpty {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Name(), c.ColumnType(), c.DataType(), c.FormulaStatus(), c.Formula(), c.FormulaMessage())
	}
	return tw.Flush()
}

// writeOrder prints the columns in the order they are recalculated
func writeOrder(w io.Writer, ds *dataset.Dataset) error {
	order, err := ds.CalculationOrder()
	if err != nil {
		return err
	}
	for i, c := range order {
		deps := c.Dependencies()
		names := make([]string, len(deps))
		for j, d := range deps {
			names[j] = d.Name()
		}
		fmt.Fprintf(w, "%d. %s <- [%s]\n", i+1, c.Name(), strings.Join(names, ", "))
	}
	return nil
}
