// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ollama/albert/envconfig"
	"github.com/ollama/albert/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "albert",
		Short:         "Build ALBERT encoder graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	// Commands erstellen
	buildCmd := newBuildCmd()
	showCmd := newShowCmd()
	exportCmd := newExportCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	graphEnvs := []envconfig.EnvVar{
		envVars["ALBERT_DEBUG"],
		envVars["ALBERT_SEED"],
		envVars["ALBERT_STRICT_GROUPS"],
		envVars["ALBERT_BACKEND"],
	}

	for _, cmd := range []*cobra.Command{buildCmd, showCmd, exportCmd} {
		switch cmd {
		case buildCmd:
			appendEnvDocs(cmd, append(graphEnvs, envVars["ALBERT_TRAINING"]))
		case exportCmd:
			appendEnvDocs(cmd, append(graphEnvs, envVars["ALBERT_EXPORT_TYPE"]))
		default:
			appendEnvDocs(cmd, graphEnvs)
		}
	}

	rootCmd.AddCommand(
		buildCmd,
		showCmd,
		exportCmd,
		envCmd,
	)

	return rootCmd
}
