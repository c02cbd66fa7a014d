package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vogtb/go-datasheet/packages/dataset"
)

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "eval workbook",
		Short: "Recalculate every formula column and print the dataset",
		Args:  cobra.ExactArgs(1),
		Run:   evalWorkbook}
	cmd.Flags().Bool("hide-filtered", false, "omit rows excluded by an active filter")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "check workbook",
		Short: "Compile every formula and report its status",
		Args:  cobra.ExactArgs(1),
		Run:   checkWorkbook}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "order workbook",
		Short: "Print the order in which columns are recalculated",
		Args:  cobra.ExactArgs(1),
		Run:   orderWorkbook}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "graph workbook",
		Short: "Print the column dependency graph in Graphviz dot format",
		Args:  cobra.ExactArgs(1),
		Run:   graphWorkbook}
	root.AddCommand(cmd)
}

func fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	os.Exit(1)
}

// newLogger builds the zap backed logger. verbosity maps onto logr V
// levels, so -v 4 shows recalculation traces.
func newLogger(verbosity int, dev bool) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.DisableStacktrace = true
	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// Represents the state used when processing a command.
type Action struct {
	cmd *cobra.Command
	out io.Writer
	log logr.Logger
}

func newAction(cmd *cobra.Command) *Action {
	result := &Action{cmd: cmd, out: cmd.OutOrStdout()}
	log, err := newLogger(result.getInt("verbosity"), result.getBool("log-dev"))
	if err != nil {
		fatal("logger: %s", err.Error())
	}
	result.log = log.WithName("datasheet")
	return result
}

func (a *Action) getBool(name string) bool {
	result, _ := a.cmd.Flags().GetBool(name)
	return result
}

func (a *Action) getInt(name string) int {
	result, _ := a.cmd.Flags().GetInt(name)
	return result
}

func (a *Action) getString(name string) string {
	result, _ := a.cmd.Flags().GetString(name)
	return result
}

// load reads and builds the workbook named on the command line
func (a *Action) load(fname string) *dataset.Dataset {
	wb, err := LoadWorkbook(fname)
	if err != nil {
		a.Exit(err)
	}
	ds, err := wb.Build(a.log)
	if err != nil {
		a.Exit(err)
	}
	a.log.V(1).Info("workbook loaded", "file", fname, "rows", ds.RowCount(), "columns", ds.ColumnCount())
	return ds
}

func (a *Action) Exit(err error) {
	if err != nil {
		a.log.Error(err, "command failed", "command", a.cmd.Name())
		fatal("%s", err.Error())
	}
	os.Exit(0)
}

func evalWorkbook(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	ds := action.load(args[0])
	if err := ds.RecalcAll(); err != nil {
		action.Exit(err)
	}
	action.Exit(writeTable(action.out, ds, action.getString("format"), action.getBool("hide-filtered")))
}

func checkWorkbook(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	ds := action.load(args[0])
	action.Exit(writeStatus(action.out, ds))
}

func orderWorkbook(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	ds := action.load(args[0])
	action.Exit(writeOrder(action.out, ds))
}

func graphWorkbook(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	ds := action.load(args[0])
	fmt.Fprintln(action.out, ds.DotGraph().String())
	action.Exit(nil)
}
