package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultWorkerYAML = `# Translation worker config
# Priority: CLI flag > this file > default.

log_level:    "info"       # debug | info | warn | error
metrics_addr: ":9091"

redis_addr:    "localhost:6379"
jobs_queue:    "translation-jobs"
results_queue: "translation-results"

poll_interval:      "5s"
visibility_timeout: "5m"
batch_size:         1
max_deliveries:     5
translate_timeout:  "30s"

# rate_limit:  100    # provider calls per rate_window shared by all workers; 0 disables
# rate_window: "1m"

translator_endpoint: "https://api.cognitive.microsofttranslator.com"
# translator_region: "westeurope"
# translator_key:    ""          # or AZURE_TRANSLATOR_KEY env var

# otel_endpoint: "localhost:4318"  # uncomment to enable OpenTelemetry tracing
`

// newInitCmd returns a "init" subcommand that writes a default config file.
// serviceName is used for the default file name and directory.
// defaultYAML is the content written to the file.
func newInitCmd(serviceName, defaultYAML string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: fmt.Sprintf(`Write default configuration for %s.

If --config is given the file is written to that path.
Otherwise it is written to ~/.a2a-translation/%s.yaml.
Fails if the file already exists unless --force is passed.`, serviceName, serviceName),
		RunE: func(_ *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, ".a2a-translation", serviceName+".yaml")
			}

			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			if err := os.WriteFile(dest, []byte(defaultYAML), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}
