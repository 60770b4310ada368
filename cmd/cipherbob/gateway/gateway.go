package gatewaycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/cipherbob/pkg/logger"
	"github.com/papercomputeco/cipherbob/proxy"
)

const gatewayLongDesc string = `Run the cipherbob chat gateway.

Browser pages on an allowed origin POST {"messages": [...]} to any path
containing "chat". The gateway pins the model and token cap, adds the
Anthropic API key server-side, and relays the upstream JSON back.

The API key is read from ANTHROPIC_API_KEY and the listen port from PORT
(default 8080). Other settings come from an optional TOML file and
CIPHERBOB_* environment variables, environment taking precedence.

Examples:
  ANTHROPIC_API_KEY=sk-ant-... cipherbob
  cipherbob --config /etc/cipherbob.toml --metrics-listen 127.0.0.1:9100`

const gatewayShortDesc string = "Secure chat gateway for the Anthropic Messages API"

type gatewayCommander struct {
	configPath    string
	metricsListen string
	debug         bool
}

func NewGatewayCmd() *cobra.Command {
	cmder := &gatewayCommander{}

	cmd := &cobra.Command{
		Use:          "cipherbob",
		Short:        gatewayShortDesc,
		Long:         gatewayLongDesc,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML configuration file")
	cmd.Flags().StringVar(&cmder.metricsListen, "metrics-listen", "", "Address for the Prometheus metrics listener (disabled when empty)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

// loadConfig resolves the final configuration. Flags win over the
// environment and the config file.
func (c *gatewayCommander) loadConfig() (proxy.Config, error) {
	cfg, err := proxy.LoadConfig(c.configPath)
	if err != nil {
		return proxy.Config{}, err
	}

	if c.metricsListen != "" {
		cfg.MetricsListen = c.metricsListen
	}

	return cfg, nil
}

func (c *gatewayCommander) run(_ context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(c.debug)
	defer log.Sync()

	log.Info("cipherbob gateway starting",
		zap.Int("port", cfg.Port),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.String("model", cfg.Model),
		zap.Int("max_tokens", cfg.MaxTokens),
		zap.String("api_key", logger.Mask(cfg.APIKey)),
		zap.Bool("debug", c.debug),
	)

	p, err := proxy.New(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create gateway: %w", err)
	}
	defer p.Close()

	return p.Run()
}
