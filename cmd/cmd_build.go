// cmd_build.go - Build Command Handler
// Hauptfunktionen: BuildHandler, feedsFor
package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/model"
	"github.com/ollama/albert/model/input"
)

// BuildHandler - Baut den Graphen, listet die Ausgaben und wertet sie optional aus
func BuildHandler(cmd *cobra.Command, args []string) error {
	g, err := newGraph(cmd, args)
	if err != nil {
		return err
	}
	defer g.Close()

	w := cmd.OutOrStdout()
	cfg := g.model.Config()
	fmt.Fprintf(w, "architecture %s, input %s, fingerprint %016x\n\n", cfg.Architecture, formatShape(g.batch.Shape), g.ctx.Fingerprint())

	var data [][]string
	for name, t := range g.outputs.Tensors() {
		data = append(data, []string{name, formatShape(t.Shape()), t.DType().String()})
	}
	data = append(data,
		[]string{model.HiddenStates, strconv.Itoa(len(g.outputs.HiddenStates())) + " tensors", ""},
		[]string{model.Attentions, strconv.Itoa(len(g.outputs.Attentions())) + " tensors", ""},
	)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"OUTPUT", "SHAPE", "TYPE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	s, _ := cmd.Flags().GetString("ids")
	if s == "" {
		return nil
	}

	feeds, err := feedsFor(g, s)
	if err != nil {
		return err
	}

	var names []string
	var ts []ml.Tensor
	for name, t := range g.outputs.Tensors() {
		names = append(names, name)
		ts = append(ts, t)
	}

	out, err := g.ctx.Compute(feeds, ts...)
	if err != nil {
		return err
	}

	edgeItems, _ := cmd.Flags().GetInt("edge-items")
	for i, a := range out {
		fmt.Fprintf(w, "\n%s %s\n%s\n", names[i], formatShape(a.Shape), ml.Dump(a, ml.DumpWithEdgeItems(edgeItems)))
	}
	return nil
}

// feedsFor - Bindet input_ids; die Batch-Dimensionen ergeben sich aus der Anzahl der IDs
func feedsFor(g *graph, s string) (map[string]ml.Array, error) {
	ids, err := parseIDs(s)
	if err != nil {
		return nil, err
	}

	shape := g.batch.Shape
	known := 1
	unknown := -1
	for i, d := range shape {
		if d < 0 {
			if unknown >= 0 {
				return nil, fmt.Errorf("%w: --ids needs at most one unknown dimension in %s", errInvalidFlag, formatShape(shape))
			}
			unknown = i
			continue
		}
		known *= d
	}

	concrete := append([]int(nil), shape...)
	if unknown >= 0 {
		concrete[unknown] = len(ids) / known
	}
	if len(ids) == 0 || len(ids)%known != 0 || ml.NewArray(nil, concrete...).Len() != len(ids) {
		return nil, fmt.Errorf("%w: %d ids do not fit input shape %s", errInvalidFlag, len(ids), formatShape(shape))
	}

	feeds := map[string]ml.Array{input.InputIDs: ml.IntArray(ids, concrete...)}
	for _, name := range g.batch.Provided {
		if name != input.InputIDs {
			return nil, fmt.Errorf("%w: --ids cannot be combined with --provide %s", errInvalidFlag, name)
		}
	}
	return feeds, nil
}
