package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunabot-ai/lunabot/internal/config"
	"github.com/lunabot-ai/lunabot/internal/memory"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lunabot configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	fmt.Println("lunabot status")
	fmt.Println()
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	if cfg.Memory.URL != "" {
		client := memory.NewClient(cfg.Memory.URL, cfg.Memory.APIKey, 5*time.Second)
		state := "unreachable"
		if client.Health(cmd.Context()) {
			state = "ok"
		}
		fmt.Printf("Memory service: %s (%s)\n", cfg.Memory.URL, state)
	}
	if cfg.Redis.URL != "" {
		fmt.Printf("Search cache: %s\n", cfg.Redis.URL)
	}

	fmt.Printf("\nBots (%d):\n", len(cfg.Bots))
	for _, bot := range cfg.Bots {
		fmt.Printf("  %s", bot.ID)
		if bot.Name != "" {
			fmt.Printf(" (%s)", bot.Name)
		}
		fmt.Printf("  namespace=%s", bot.Namespace())
		if bot.Telegram != nil && bot.Telegram.Token != "" {
			fmt.Print("  telegram ✓")
		}
		if bot.WhatsApp != nil {
			fmt.Print("  whatsapp ✓")
		}
		fmt.Println()
	}
	return nil
}
