package cli

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Version is set at build time via -ldflags
var Version = "0.3.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "truthgauge",
	Short: "truthgauge - Content verification against published fact checks",
	Long: `truthgauge estimates whether submitted content is likely true.

Text, documents (PDF, DOCX, DOC), images and web pages are reduced to plain
text, matched against published fact checks, and judged by a language model
that must ground its verdict in that evidence.

The confidence figure is an estimate, not a ground-truth verdict.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("truthgauge v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.truthgauge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.truthgauge")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureEnv maps TRUTHGAUGE_<SECTION>_<KEY> onto every config key
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("TRUTHGAUGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about
	for _, key := range configKeys(reflect.TypeOf(model.Config{}), "") {
		_ = v.BindEnv(key)
	}
}

// configKeys lists dotted mapstructure keys for every leaf field of t
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			keys = append(keys, configKeys(field.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// loadConfig layers defaults, config file, TRUTHGAUGE_* env and flags, then
// copies provider credentials from their conventional variables. This is the
// only place the environment is read.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	applyCredentialEnv(cfg)
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

func applyCredentialEnv(cfg *model.Config) {
	setIfEmpty(&cfg.FactCheck.APIKey, os.Getenv("GOOGLE_FACT_CHECK_API_KEY"))
	setIfEmpty(&cfg.OCR.APIKey, os.Getenv("OCR_SPACE_API_KEY"))

	switch cfg.LLM.Provider {
	case "openai":
		setIfEmpty(&cfg.LLM.APIKey, os.Getenv("OPENAI_API_KEY"))
	case "anthropic", "claude":
		setIfEmpty(&cfg.LLM.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	case "gemini":
		setIfEmpty(&cfg.LLM.APIKey, os.Getenv("GEMINI_API_KEY"))
	case "ollama":
		setIfEmpty(&cfg.LLM.BaseURL, os.Getenv("OLLAMA_BASE_URL"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}

// setupLogging installs the default slog handler on stderr
func setupLogging() error {
	level := firstNonEmpty(logLevel, viper.GetString("log.level"), model.DefaultConfig().Log.Level)
	if verbose && level == "info" {
		level = "debug"
	}
	handler, err := newLogHandler(level, firstNonEmpty(logFormat, viper.GetString("log.format")))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func newLogHandler(level, format string) (slog.Handler, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "", "text":
		return slog.NewTextHandler(os.Stderr, opts), nil
	case "json":
		return slog.NewJSONHandler(os.Stderr, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
