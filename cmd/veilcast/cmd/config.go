package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/pkg/bytesize"
	"github.com/veilcast/veilcast/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing veilcast configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  veilcast config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, /etc/veilcast/config.yaml, $HOME/.veilcast)
  - Environment variables (VEILCAST_SERVER_PORT, VEILCAST_INPUT_URL, etc.)
  - Command-line flags (for some options)

Environment variables use the VEILCAST_ prefix and underscores for nesting.
Example: input.url -> VEILCAST_INPUT_URL`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map, formatting durations and sizes
// for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(fv)
		case config.Duration:
			result[key] = duration.Format(fv.Duration())
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(fv))
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# veilcast Configuration File")
	fmt.Println("# ===========================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h, 30d")
	fmt.Println("# Size format: 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   VEILCAST_INPUT_URL, VEILCAST_OUTPUT_URL")
	fmt.Println("#   VEILCAST_SERVER_HOST, VEILCAST_SERVER_PORT")
	fmt.Println("#   VEILCAST_CONSENT_DIR, VEILCAST_DATABASE_DSN")
	fmt.Println("#   VEILCAST_LOGGING_LEVEL, VEILCAST_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
