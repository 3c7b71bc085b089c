// internal/cli/root.go
package sage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/rag"
)

// quietAnnotation marks commands that own the terminal and log to the file only.
const quietAnnotation = "sage/quiet"

var (
	cfgFile       string
	currentConfig *appconfig.Config
)

// envKeys are the nested settings that can be overridden with SAGE_* variables.
var envKeys = []string{
	"model.type", "model.url", "model.name", "model.path", "model.managed", "model.serverBinary",
	"model.contextSize", "model.gpuLayers", "model.maxRetries", "model.retryDelayMs",
	"embedding.type", "embedding.url", "embedding.model",
	"store.backend", "store.qdrantHost", "store.qdrantPort", "store.collection",
	"rag.topK", "corpus", "listen", "timeout", "logFile", "debug", "metrics", "metricsFile",
}

var rootCmd = &cobra.Command{
	Use:           "sage",
	Short:         "sage: ask questions about a local corpus, answered by a local model",
	Long:          `sage loads a local language model, indexes a text corpus and answers questions from it through a browser chat UI on a loopback address.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		currentConfig = cfg

		logging.SetQuiet(cmd.Annotations[quietAnnotation] == "true")
		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	defer logging.Close()

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

func reportError(w io.Writer, err error) {
	logging.LogFileOnly("[FATAL] %v", err)
	if errors.Is(err, rag.ErrCorpusNotFound) {
		fmt.Fprintf(w, "fatal: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("metrics", false, "record answer timings to the metrics file")
	rootCmd.PersistentFlags().String("corpus", "", "corpus file, split into passages on blank lines (default rag.txt)")
	rootCmd.PersistentFlags().String("listen", "", "loopback address for the chat UI (default 127.0.0.1:7860)")
}

// loadConfig merges defaults, the config file, SAGE_* environment variables and
// flags (highest precedence) into a validated Config.
func loadConfig(cmd *cobra.Command) (*appconfig.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	for _, name := range []string{"debug", "metrics", "corpus", "listen"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	path := cfgFile
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		// No file: defaults, env and flags only.
		path = ""
	}

	if path != "" {
		if err := appconfig.ValidateFile(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg appconfig.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getConfig returns the configuration loaded for the running command.
func getConfig() *appconfig.Config {
	return currentConfig
}
