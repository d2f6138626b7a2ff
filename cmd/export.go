package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/baptistelechat/overti-me/internal/app"
	"github.com/baptistelechat/overti-me/pkg/export"
	"github.com/baptistelechat/overti-me/pkg/timesheet"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportColumns string
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current week to xlsx, csv or json",
	Long: `Export the current week. The file is named overti-me_<week>.<format> unless
--output is given; "-" writes to stdout.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", string(export.FormatXLSX), "Output format: xlsx, csv, json")
	exportCmd.Flags().StringVar(&exportColumns, "columns", "", "Comma separated columns, all by default")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, - for stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	columns, err := export.ParseColumns(exportColumns)
	if err != nil {
		return err
	}

	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		record, err := timesheet.EnsureCurrentWeek(ctx, deps.Store)
		if err != nil {
			return err
		}

		if exportOutput == "-" {
			_, err := export.Write(cmd.OutOrStdout(), record, columns, format)
			return err
		}

		path := exportOutput
		if path == "" {
			path = export.FileName(record.Id, format)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		if _, err := export.Write(f, record, columns, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Debugf("Exported week %s to %s", record.Id, path)
		fmt.Fprintf(cmd.OutOrStdout(), "Exported week %s to %s\n", record.Id, path)
		return nil
	})
}

