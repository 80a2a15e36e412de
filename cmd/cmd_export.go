// cmd_export.go - Export Command Handler
// Hauptfunktionen: ExportHandler
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ollama/albert/envconfig"
	"github.com/ollama/albert/fs/ggml"
)

// ExportHandler - Schreibt Konfiguration und initialisierte Gewichte als GGUF
func ExportHandler(cmd *cobra.Command, args []string) error {
	typ, _ := cmd.Flags().GetString("type")
	if typ == "" {
		typ = envconfig.ExportType()
	}

	kind, err := ggml.ParseTensorType(typ)
	if err != nil {
		return err
	}

	g, err := newGraph(cmd, args)
	if err != nil {
		return err
	}
	defer g.Close()

	r := g.model.Registry()
	ts, err := r.Tensors(kind)
	if err != nil {
		return err
	}

	kv := g.model.Config().KV()
	kv["general.file_type"] = uint32(kind)
	kv["general.parameter_count"] = uint64(r.ParameterCount())

	path, _ := cmd.Flags().GetString("output")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ggml.WriteGGUF(f, kv, ts); err != nil {
		return err
	}

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	slog.Debug("export", "path", path, "tensors", len(ts), "type", kind)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d tensors, %s, %d bytes)\n", path, len(ts), kind, fi.Size())
	return nil
}
