package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gewegate/internal/config"
	"github.com/nextlevelbuilder/gewegate/internal/rules"
)

// checkCmd validates the configuration without starting the gateway:
// file parse, bot credentials, and rule compilation (including regexes).
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and rules",
		Run: func(cmd *cobra.Command, args []string) {
			path := resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "FAIL  load %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("OK    config loaded from %s\n", path)

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "FAIL  validate: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("OK    %d bot(s) configured\n", len(cfg.Bots))

			failed := false
			for _, bc := range cfg.Bots {
				compiled, err := rules.Compile(bc.Rules)
				if err != nil {
					fmt.Fprintf(os.Stderr, "FAIL  bot %s: %v\n", bc.AppID, err)
					failed = true
					continue
				}
				secret := "token"
				if bc.WebhookSecret != "" {
					secret = "webhook_secret"
				}
				fmt.Printf("OK    bot %s: %d rule(s), signing key: %s\n", bc.AppID, len(compiled), secret)
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}
