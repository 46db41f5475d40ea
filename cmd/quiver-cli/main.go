// Command quiver-cli inspects and converts columnar data files.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quiverdata/quiver"
)

func main() {
	root := &cobra.Command{
		Use:   "quiver-cli",
		Short: "Inspect and convert CSV and Parquet files",
	}
	addCommands(root)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "schema file",
		Short: "Print the column names and types of a file",
		Args:  cobra.ExactArgs(1),
		Run:   showSchema}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "head file",
		Short: "Print the first rows of a file",
		Args:  cobra.ExactArgs(1),
		Run:   showHead}
	cmd.Flags().IntP("rows", "n", 10, "number of rows to print")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "convert input output",
		Short: "Convert between CSV and Parquet",
		Args:  cobra.ExactArgs(2),
		Run:   convert}
	root.AddCommand(cmd)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}

// scanFile picks the source from the file extension.
func scanFile(path string) *quiver.LazyFrame {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return quiver.ScanParquet(path)
	case ".csv":
		return quiver.ScanCSV(path)
	default:
		fatal("unsupported file type %q, expected .csv or .parquet", filepath.Ext(path))
		return nil
	}
}

func showSchema(cmd *cobra.Command, args []string) {
	df, err := scanFile(args[0]).Limit(0).Collect()
	if err != nil {
		fatal("%s", err)
	}
	for _, f := range df.Fields() {
		fmt.Printf("%s\t%s\n", f.Name, f.Type)
	}
}

func showHead(cmd *cobra.Command, args []string) {
	n, err := cmd.Flags().GetInt("rows")
	if err != nil {
		fatal("%s", err)
	}
	df, err := scanFile(args[0]).Limit(n).Collect()
	if err != nil {
		fatal("%s", err)
	}
	fmt.Println(df)
}

func convert(cmd *cobra.Command, args []string) {
	df, err := scanFile(args[0]).Collect()
	if err != nil {
		fatal("%s", err)
	}
	switch strings.ToLower(filepath.Ext(args[1])) {
	case ".parquet":
		err = quiver.WriteParquet(args[1], df)
	case ".csv":
		err = quiver.WriteCSV(args[1], df)
	default:
		fatal("unsupported output type %q, expected .csv or .parquet", filepath.Ext(args[1]))
	}
	if err != nil {
		fatal("%s", err)
	}
}
