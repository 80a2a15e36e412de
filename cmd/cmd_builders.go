// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newBuildCmd, newShowCmd, newExportCmd, newEnvCmd
package cmd

import (
	"github.com/spf13/cobra"
)

// addGraphFlags - Flags fuer Konfiguration und Eingabeform
func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("set", nil, "Override a config field (e.g. --set num_hidden_layers=4)")
	cmd.Flags().String("arch", "", "Architecture (e.g. for_sequence_classification)")
	cmd.Flags().String("shape", "1,8", "Input shape: batch,seq or batch,choices,seq (-1 for unknown batch)")
	cmd.Flags().StringSlice("provide", nil, "Optional inputs bound as placeholders instead of their defaults")
}

// newBuildCmd - Erstellt den build Command
func newBuildCmd() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [CONFIG]",
		Short: "Build a graph and print its outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  BuildHandler,
	}

	addGraphFlags(buildCmd)
	buildCmd.Flags().String("ids", "", "Comma separated input_ids; computes the outputs with the reference backend")
	buildCmd.Flags().Int("edge-items", 3, "Values shown at each edge when printing outputs")

	return buildCmd
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show [CONFIG]",
		Short: "Show the configuration and weights of a graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  ShowHandler,
	}

	addGraphFlags(showCmd)
	showCmd.Flags().Bool("weights", true, "Show the weight table")

	return showCmd
}

// newExportCmd - Erstellt den export Command
func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export [CONFIG]",
		Short: "Write config and initialized weights as GGUF",
		Args:  cobra.MaximumNArgs(1),
		RunE:  ExportHandler,
	}

	addGraphFlags(exportCmd)
	exportCmd.Flags().StringP("output", "o", "albert.gguf", "Output file")
	exportCmd.Flags().String("type", "", "Tensor type: f32, f16 or bf16 (default ALBERT_EXPORT_TYPE)")

	return exportCmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	envCmd.Flags().Bool("json", false, "Print the values as a JSON object")
	return envCmd
}
