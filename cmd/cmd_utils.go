// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: loadConfig, parseShape, parseOverrides, newGraph
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ollama/albert/envconfig"
	"github.com/ollama/albert/ml"
	_ "github.com/ollama/albert/ml/backend/ref"
	"github.com/ollama/albert/model"
	"github.com/ollama/albert/model/input"
	"github.com/ollama/albert/model/models/albert"
)

var errInvalidFlag = errors.New("invalid flag")

// parseOverrides - Parst key=value Paare; Werte werden als JSON gelesen,
// sonst als String uebernommen
func parseOverrides(pairs []string) (map[string]any, error) {
	overrides := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: --set %q, want key=value", errInvalidFlag, pair)
		}

		d := json.NewDecoder(strings.NewReader(value))
		d.UseNumber()

		var v any
		if err := d.Decode(&v); err != nil || d.More() {
			v = value
		}
		overrides[strings.TrimSpace(key)] = v
	}
	return overrides, nil
}

// parseShape - Parst eine Form wie "1,9" oder "-1,4,9"
func parseShape(s string) ([]int, error) {
	var shape []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: --shape %q: %v", errInvalidFlag, s, err)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

// parseIDs - Parst eine kommagetrennte Liste von Token-IDs
func parseIDs(s string) ([]int32, error) {
	var ids []int32
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: --ids %q: %v", errInvalidFlag, s, err)
		}
		ids = append(ids, int32(n))
	}
	return ids, nil
}

// loadConfig - Liest die Konfiguration aus der Datei in args (falls vorhanden)
// und legt --arch und --set darueber
func loadConfig(cmd *cobra.Command, args []string) (*albert.Config, error) {
	pairs, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return nil, err
	}

	flags, err := parseOverrides(pairs)
	if err != nil {
		return nil, err
	}

	// Umgebung vor Datei-Defaults, --set vor Umgebung
	overrides := envOverrides()
	maps.Copy(overrides, flags)

	if arch, _ := cmd.Flags().GetString("arch"); arch != "" {
		overrides["architecture"] = arch
	}

	if len(args) > 0 {
		return albert.LoadFile(args[0], overrides)
	}
	return albert.Configure(overrides)
}

// envOverrides - Konfigurationswerte aus gesetzten ALBERT_* Variablen
func envOverrides() map[string]any {
	overrides := make(map[string]any)
	if envconfig.Var("ALBERT_STRICT_GROUPS") != "" {
		overrides["strict_groups"] = envconfig.StrictGroups()
	}
	if envconfig.Var("ALBERT_SEED") != "" {
		overrides["seed"] = envconfig.Seed()
	}
	return overrides
}

// graph - Ein aufgebauter Graph mit Kontext und Modell
type graph struct {
	backend ml.Backend
	ctx     ml.Context
	model   *albert.Model
	outputs *model.Outputs
	batch   input.Batch
}

func (g *graph) Close() {
	g.ctx.Close()
	g.backend.Close()
}

// newGraph - Baut den Graphen aus Konfiguration und Flags
func newGraph(cmd *cobra.Command, args []string) (*graph, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}

	m, err := albert.NewModel(cfg)
	if err != nil {
		return nil, err
	}

	s, _ := cmd.Flags().GetString("shape")
	shape, err := parseShape(s)
	if err != nil {
		return nil, err
	}

	provided, _ := cmd.Flags().GetStringSlice("provide")

	b, err := ml.NewBackend(envconfig.Backend(), ml.BackendParams{
		Training: envconfig.Training(),
		Seed:     cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	ctx := b.NewContext()
	outputs, batch, err := albert.Build(ctx, m, shape, provided...)
	if err != nil {
		ctx.Close()
		b.Close()
		return nil, err
	}

	return &graph{backend: b, ctx: ctx, model: m, outputs: outputs, batch: batch}, nil
}

// formatShape - Formatiert eine Form; unbekannte Dimensionen als "?"
func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
