// Package main provides the xlbuild command line tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/javajack/xlbuild"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	logLevel   string
	outputPath string
	formatName string
	dataPath   string
	describe   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xlbuild",
		Short: "Build spreadsheets from YAML layouts",
		Long: `xlbuild writes rows described in a YAML layout into a workbook
and reports where every keyed cell landed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "Log level: debug, info, warning, error")

	buildCmd := &cobra.Command{
		Use:   "build [layout.yaml]",
		Short: "Write a workbook from a layout",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	buildCmd.Flags().StringVar(&formatName, "format", "", "Output format: xlsx, xlsm, xltx, xltm, csv (default: from output extension, else xlsx)")
	buildCmd.Flags().StringVar(&dataPath, "data", "", "YAML file with variables for each blocks")
	buildCmd.Flags().BoolVar(&describe, "describe", false, "Print the recorded keys to stderr")

	validateCmd := &cobra.Command{
		Use:   "validate [layout.yaml]",
		Short: "Check a layout without writing a workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	colCmd := &cobra.Command{
		Use:   "col [index|label]",
		Short: "Convert between 0-based column indexes and column labels",
		Args:  cobra.ExactArgs(1),
		RunE:  runCol,
	}

	rootCmd.AddCommand(buildCmd, validateCmd, colCmd)
	return rootCmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	layout, err := xlbuild.LoadLayoutFile(args[0])
	if err != nil {
		return err
	}
	issues := xlbuild.ValidateLayout(layout)
	for _, issue := range issues {
		fmt.Fprintln(cmd.ErrOrStderr(), issue)
	}
	if xlbuild.HasErrors(issues) {
		return fmt.Errorf("layout %s has errors", args[0])
	}

	data, err := loadData(dataPath)
	if err != nil {
		return err
	}

	b := xlbuild.New(xlbuild.WithData(data), xlbuild.WithLogger(logrus.StandardLogger()))
	defer b.Close()
	if err := layout.Apply(b); err != nil {
		return fmt.Errorf("apply layout: %w", err)
	}
	if describe {
		fmt.Fprint(cmd.ErrOrStderr(), b.Describe())
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}
	if outputPath == "" {
		return b.Write(cmd.OutOrStdout(), format)
	}
	if formatName == "" {
		return b.SaveAs(outputPath)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", outputPath, err)
	}
	if err := b.Write(out, format); err != nil {
		out.Close()
		os.Remove(outputPath)
		return err
	}
	return out.Close()
}

func outputFormat() (xlbuild.Format, error) {
	switch {
	case formatName != "":
		return xlbuild.ParseFormat(formatName)
	case outputPath != "":
		return xlbuild.ParseFormat(filepath.Ext(outputPath))
	default:
		return xlbuild.FormatXLSX, nil
	}
}

func loadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode data file %q: %w", path, err)
	}
	return data, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	layout, err := xlbuild.LoadLayoutFile(args[0])
	if err != nil {
		return err
	}
	issues := xlbuild.ValidateLayout(layout)
	for _, issue := range issues {
		fmt.Fprintln(cmd.OutOrStdout(), issue)
	}
	if xlbuild.HasErrors(issues) {
		return fmt.Errorf("layout %s has errors", args[0])
	}
	if len(issues) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
	}
	return nil
}

func runCol(cmd *cobra.Command, args []string) error {
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 0 {
			return fmt.Errorf("column index %d is negative", n)
		}
		fmt.Fprintln(cmd.OutOrStdout(), xlbuild.ColToName(n))
		return nil
	}
	col, err := xlbuild.NameToCol(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), col)
	return nil
}
