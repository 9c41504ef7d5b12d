package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show configuration and data directory paths",
	Long: `Display seca-suite configuration information including:
  - Data directory, database and diagram locations
  - Configuration file path
  - Analysis endpoint and assistant model
  - Platform information`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getAppContext(cmd).Config
		out := cmd.OutOrStdout()

		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = colorWarn("offline (local analysis only)")
		}
		assistant := colorMuted("disabled (set llm.enabled)")
		if cfg.LLM.Enabled {
			assistant = fmt.Sprintf("%s at %s", cfg.LLM.Model, cfg.LLM.BaseURL)
		}

		fmt.Fprintln(out, "seca-suite System Information")
		fmt.Fprintln(out, "=============================")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Version:           %s\n", Version)
		fmt.Fprintf(out, "Platform:          %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Data Locations:")
		fmt.Fprintf(out, "  Data Directory:  %s %s\n", cfg.DataDir, existence(cfg.DataDir))
		db := filepath.Join(cfg.DataDir, application.DatabaseFile)
		fmt.Fprintf(out, "  Database:        %s %s\n", db, existence(db))
		diagrams := filepath.Join(cfg.DataDir, "diagrams")
		fmt.Fprintf(out, "  Diagrams:        %s %s\n", diagrams, existence(diagrams))
		fmt.Fprintln(out)
		cfgPath := configFilePath()
		fmt.Fprintf(out, "Configuration File: %s %s\n", cfgPath, existence(cfgPath))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Services:")
		fmt.Fprintf(out, "  Endpoint:        %s\n", endpoint)
		fmt.Fprintf(out, "  Assistant:       %s\n", assistant)
		fmt.Fprintf(out, "  Gateway:         %s\n", cfg.Gateway.Addr)
		fmt.Fprintf(out, "  History:         kept %d days\n", cfg.History.RetentionDays)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To override the data directory, set data_dir in the configuration file")
		fmt.Fprintln(out, "or SECA_DATA_DIR in the environment.")
		return nil
	},
}

func existence(path string) string {
	if _, err := os.Stat(path); err == nil {
		return colorSuccess("✓")
	}
	return colorMuted("(not created yet)")
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
