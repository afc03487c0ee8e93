package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/insightlab/insightengine/schema"
	"github.com/insightlab/insightengine/source"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the inferred schema of a CSV dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := source.Resolve(args[0])
		if err != nil {
			return err
		}
		inferred, err := schema.InferSchema(src.Path, 0)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.AppendHeader(table.Row{"Column", "Type", "Null rate", "Distinct"})
		for _, c := range inferred.Columns {
			t.AppendRow(table.Row{c.Name, c.Type, fmt.Sprintf("%.1f%%", c.NullRate*100), c.DistinctCount})
		}
		t.SetStyle(table.StyleDefault)
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
