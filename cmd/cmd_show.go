// cmd_show.go - Show Command Handler
// Hauptfunktionen: ShowHandler, showInfo
package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/albert/model"
)

// ShowHandler - Zeigt Konfiguration, Parameter und Gewichte eines Graphen
func ShowHandler(cmd *cobra.Command, args []string) error {
	g, err := newGraph(cmd, args)
	if err != nil {
		return err
	}
	defer g.Close()

	weights, _ := cmd.Flags().GetBool("weights")
	return showInfo(g, weights, cmd.OutOrStdout())
}

// showInfo - Gibt detaillierte Graph-Informationen aus
func showInfo(g *graph, weights bool, w io.Writer) error {
	tableRender := func(header string, columns []string, rows func() [][]string) {
		fmt.Fprintln(w, " ", header)
		table := tablewriter.NewWriter(w)
		if columns != nil {
			table.SetHeader(columns)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
		}
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(rows())
		table.Render()
		fmt.Fprintln(w)
	}

	cfg := g.model.Config()
	r := g.model.Registry()

	tableRender("Config", nil, func() (rows [][]string) {
		m := cfg.Map()
		for _, k := range slices.Sorted(maps.Keys(m)) {
			switch k {
			case "id2label", "label2id":
				continue
			}
			rows = append(rows, []string{"", k, fmt.Sprint(m[k])})
		}
		rows = append(rows, []string{"", "labels", fmt.Sprint(cfg.Labels())})
		return rows
	})

	tableRender("Parameters", nil, func() [][]string {
		encoder := r.ParameterCount(func(a model.Address) bool { return a.Group != model.NoIndex })
		return [][]string{
			{"", "weights", strconv.Itoa(r.Len())},
			{"", "parameters", strconv.Itoa(r.ParameterCount())},
			{"", "shared layer parameters", strconv.Itoa(encoder)},
			{"", "groups", fmt.Sprint(r.Groups())},
			{"", "reused", strconv.Itoa(r.Hits())},
		}
	})

	if !weights {
		return nil
	}

	tableRender("Weights", []string{"NAME", "SHAPE", "INIT", "USES", "PARAMS"}, func() (rows [][]string) {
		for _, wt := range r.Weights() {
			rows = append(rows, []string{wt.Name, formatShape(wt.Shape), wt.Init.String(), strconv.Itoa(wt.Uses), strconv.Itoa(wt.Elements())})
		}
		return rows
	})

	return nil
}
