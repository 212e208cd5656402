package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pranav-jay26/Crossbow/pkg/convert"
	"github.com/pranav-jay26/Crossbow/pkg/json"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

func newSheetsCommand(opts *globalOptions) *cobra.Command {
	var file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the sheets of a workbook",
		Long: `List the sheets of a workbook in workbook order. Delimited files have a
single sheet named after the file.

Example:
  crossbow sheets -f report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := prepare(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			sheets, err := convert.Sheets(cmd.Context(), file, cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return json.Write(cmd.OutOrStdout(), sheets, false)
			}
			for i, name := range sheets {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file, - for stdin, or an s3:// or gs:// URL (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the sheet names as a JSON array")
	cmd.Flags().String("format", "", "Force the input format (csv, xlsx, xls, ods)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// schemaField is the JSON shape of one inferred column.
type schemaField struct {
	Name     string             `json:"name"`
	Type     schema.LogicalType `json:"type"`
	Nullable bool               `json:"nullable"`
}

func newSchemaCommand(opts *globalOptions) *cobra.Command {
	var file, sheet string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer the schema of a sheet",
		Long: `Infer the column types of a whole sheet in one pass without building
batches. This always uses global inference.

Example:
  crossbow schema -f report.xlsx -s Q1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := prepare(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := convert.InferSchema(cmd.Context(), file, sheet, cfg)
			if err != nil {
				return err
			}

			fields := make([]schemaField, len(s.Fields))
			for i, f := range s.Fields {
				fields[i] = schemaField{Name: f.Name, Type: f.Type, Nullable: f.Nullable}
			}
			if asJSON {
				return json.Write(cmd.OutOrStdout(), fields, true)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetAutoFormatHeaders(false)
			table.SetHeader([]string{"#", "column", "type", "nullable"})
			for i, f := range fields {
				table.Append([]string{fmt.Sprint(i + 1), f.Name, f.Type.String(), fmt.Sprint(f.Nullable)})
			}
			table.Render()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "Input file, - for stdin, or an s3:// or gs:// URL (required)")
	flags.StringVarP(&sheet, "sheet", "s", "", "Sheet name or 0-based index (default: first sheet)")
	flags.BoolVar(&asJSON, "json", false, "Print the schema as JSON")
	addSourceFlags(cmd)
	flags.Bool("ambiguous-dates", false, "Let plausible serial numbers share a column with dates")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// addSourceFlags registers the flags shared by commands that read rows.
func addSourceFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("format", "", "Force the input format (csv, xlsx, xls, ods)")
	flags.String("delimiter", "", "Field delimiter for delimited text (default: sniffed)")
	flags.String("encoding", "", "Text encoding label such as windows-1252 (default: UTF-8)")
	flags.Bool("no-header", false, "Treat the first row as data and name columns column_N")
	flags.Bool("dedupe-headers", false, "Suffix repeated header names instead of failing")
}
