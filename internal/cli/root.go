package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

const (
	appName   = "brutally-honest"
	envPrefix = "BRUTALLY_HONEST"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Brutally Honest - credibility reports for spoken and written statements",
	Long: `Brutally Honest checks statements against your own knowledge base.

Text or recorded audio is split into atomic claims. Each claim is matched
against ingested documents and structured profile facts, classified by a
language model, and folded into a credibility report with an overall score
and the claims that deserve a second look.

Claims with no evidence are reported as NO_DATA, never as false.`,
	SilenceErrors: true,
	SilenceUsage:  true,
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
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.brutally-honest/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := configureViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return
	}
	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults, env binding and the config file on v
func configureViper(v *viper.Viper, file string) error {
	setDefaults(v, "", reflect.ValueOf(model.DefaultConfig()))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, "."+appName))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// setDefaults walks the config struct so every key, including empty
// secrets, can be overridden from the environment
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// loadConfig decodes the effective configuration from v
func loadConfig(v *viper.Viper) (model.Config, error) {
	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return model.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// currentConfig loads the configuration assembled by initConfig
func currentConfig() (model.Config, error) {
	return loadConfig(viper.GetViper())
}

// newLogger builds the service logger; quiet commands get a no-op logger unless --verbose is set
func newLogger(cfg model.Config, quiet bool) (*logger.Logger, error) {
	if quiet && !verbose {
		return logger.Nop(), nil
	}
	mode := cfg.Log.Mode
	if verbose {
		mode = "dev"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}
