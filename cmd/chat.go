package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lunabot-ai/lunabot/internal/multibot"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a bot from the terminal",
	RunE:  runChat,
}

var (
	chatBotID   string
	chatMessage string
	chatSession string
)

func init() {
	chatCmd.Flags().StringVarP(&chatBotID, "bot", "b", "", "Bot id (default: first configured bot)")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send one message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "cli:direct", "Session key")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := multibot.NewManager(cfg, makeProvider(cfg), makeMemoryStore(cfg))
	if err := manager.Setup(); err != nil {
		return err
	}

	botID := chatBotID
	if botID == "" {
		botID = cfg.Bots[0].ID
	}
	inst := manager.Get(botID)
	if inst == nil {
		return fmt.Errorf("unknown bot %q", botID)
	}

	if chatMessage != "" {
		reply, err := inst.Loop.ProcessDirect(context.Background(), chatMessage, chatSession)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	fmt.Printf("Chatting with %s (type 'exit' or Ctrl+C to quit)\n\n", botID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	exitCommands := map[string]bool{
		"exit": true, "quit": true, "/exit": true, "/quit": true, ":q": true,
	}

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if exitCommands[strings.ToLower(input)] {
			fmt.Println("Goodbye!")
			break
		}

		reply, err := inst.Loop.ProcessDirect(ctx, input, chatSession)
		if err != nil {
			log.Printf("Error: %v", err)
			continue
		}
		fmt.Printf("\n%s: %s\n\n", botID, reply)
	}
	return nil
}
