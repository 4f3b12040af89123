package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lightning-power-users/lightning-power-users-website/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if output == "" {
				output = "lpu-server.json"
			}
			return writeStarterConfig(output, force)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output config file path (default: ./lpu-server.json)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	return cmd
}

func writeStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}

	cfg := config.Config{
		Server: config.ServerConfig{
			Addr: ":8765",
		},
		Node: config.NodeConfig{
			RESTURL:      "https://127.0.0.1:8080",
			TLSCertPath:  "~/.lnd/tls.cert",
			MacaroonPath: "~/.lnd/data/chain/bitcoin/mainnet/admin.macaroon",
			URI:          config.DefaultNodeURI,
		},
		Storage: config.StorageConfig{
			Driver: "sqlite",
			DSN:    "lpu.db",
		},
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("wrote %s — edit node.rest_url and credential paths before running\n", path)
	return nil
}
