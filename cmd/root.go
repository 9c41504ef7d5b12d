package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-suite/internal/application"
	"github.com/khanhnv2901/seca-suite/internal/observability"
)

const configName = ".seca-suite"

var cfgFile string

// AppContext is shared by every command of one invocation.
type AppContext struct {
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
	Config *CLIConfig

	services *application.Container
}

// Services builds the service container on first use so that commands like
// version never touch the data directory.
func (a *AppContext) Services() (*application.Container, error) {
	if a.services != nil {
		return a.services, nil
	}
	c, err := application.NewContainer(a.Config.containerConfig(), a.Logger)
	if err != nil {
		return nil, err
	}
	a.services = c
	return c, nil
}

// Close releases the container and flushes the logger.
func (a *AppContext) Close() error {
	var err error
	if a.services != nil {
		err = a.services.Close()
		a.services = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return err
}

type appContextKey struct{}

var globalAppContext *AppContext

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	if globalAppContext != nil {
		return globalAppContext
	}
	appCtx := &AppContext{Logger: zap.NewNop(), Config: newCLIConfig()}
	appCtx.Sugar = appCtx.Logger.Sugar()
	return appCtx
}

// commandContext is the context commands pass to services.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var rootCmd = &cobra.Command{
	Use:   "seca-suite",
	Short: "Security assessment suite: GRC, network, password, phishing and threat modeling",
	Long: `seca-suite sends security analyses to the suite's analysis endpoint and
renders the results. When the endpoint is unreachable, password, phishing,
network and threat-model analyses fall back to local heuristics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		cfg, err := loadCLIConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if lvl, ok := cmd.Annotations[annotationLogLevel]; ok && !viper.IsSet("log.level") && !cmd.Flags().Changed("log-level") {
			cfg.Log.Level = lvl
		}

		logger := observability.NewLogger(cfg.Log, nil)
		appCtx := &AppContext{Logger: logger, Sugar: logger.Sugar(), Config: cfg}
		storeAppContext(cmd, appCtx)

		appCtx.Sugar.Debugw("configuration loaded",
			"config_file", viper.ConfigFileUsed(),
			"endpoint", cfg.Endpoint,
			"data_dir", cfg.DataDir)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return getAppContext(cmd).Close()
	},
}

// initConfig points viper at the config file and the SECA_* environment.
func initConfig() error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("invalid config path: %w", err)
		}
		viper.SetConfigFile(path)
	} else {
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SECA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Execute runs the root command and returns the process exit code: 0 on
// success, 2 for bad input and 1 for any other failure.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, colorError("Error:"), describeError(err))
	return exitCode(err)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-suite.yaml)")
	flags.String("endpoint", "", "analysis endpoint URL (default "+defaultEndpointHelp+")")
	flags.Bool("offline", false, "skip the endpoint and analyze locally where possible")
	flags.String("format", "text", "output format: text, json or html")
	flags.StringP("output", "o", "", "write the result to a file instead of stdout")
	flags.Bool("force", false, "overwrite an existing output file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("data-dir", "", "directory for diagrams, history and schedules")

	rootCmd.AddCommand(versionCmd)
}
