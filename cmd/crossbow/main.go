package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/pranav-jay26/Crossbow/pkg/source"

	// Import all format adapters to register them
	_ "github.com/pranav-jay26/Crossbow/pkg/source/csv"
	_ "github.com/pranav-jay26/Crossbow/pkg/source/ods"
	_ "github.com/pranav-jay26/Crossbow/pkg/source/xls"
	_ "github.com/pranav-jay26/Crossbow/pkg/source/xlsx"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "crossbow",
		Short: "Crossbow - spreadsheet to Arrow converter",
		Long: `Crossbow converts xlsx, xls and ods workbooks and delimited text files into
Arrow-compatible columnar batches with per-column type inference.

Settings are layered: defaults, the --config YAML file, CROSSBOW_* environment
variables (for example CROSSBOW_CONVERSION_CHUNK_SIZE) and finally flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to a YAML configuration file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("metrics-addr", "", "Serve prometheus metrics on this address while converting")
	pf.Bool("trace", false, "Write OpenTelemetry spans to stderr")
	pf.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	pf.StringVar(&opts.memProfile, "memprofile", "", "Write a heap profile to this file on exit")

	root.AddCommand(
		newVersionCommand(),
		newFormatsCommand(),
		newSheetsCommand(opts),
		newSchemaCommand(opts),
		newConvertCommand(opts),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Crossbow v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported input formats",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available formats:")
			for _, f := range source.Formats() {
				fmt.Fprintf(out, "  - %-5s %v\n", f.Name(), f.Extensions())
			}
		},
	}
}
