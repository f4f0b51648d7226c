package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pocket-guard/internal/buddyclient"
)

var (
	serverURL string
	token     string
	demo      bool
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "buddy",
		Short:         "Chat with Buddy, the Pocket Guard finance assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("BUDDY_SERVER", "http://localhost:8080"), "Pocket Guard API base URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("BUDDY_TOKEN"), "session token (Bearer)")
	root.PersistentFlags().BoolVar(&demo, "demo", false, "request a demo session instead of using --token")

	root.AddCommand(newChatCmd(), newStatusCmd())
	return root
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			controller := buddyclient.NewController(client, buddyclient.Options{Title: "Buddy · Pocket Guard"})
			_, err = tea.NewProgram(controller, tea.WithAltScreen()).Run()
			return err
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the server has a live model behind Buddy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			if status.ModelActive {
				fmt.Fprintf(cmd.OutOrStdout(), "Buddy model: ON (%s)\n", status.Provider)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Buddy model: OFF (canned replies)")
			}
			return nil
		},
	}
}

// connect arma el cliente autenticado con el token dado o con una sesion demo.
func connect(ctx context.Context) (*buddyclient.Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client := buddyclient.NewClient(serverURL, token, nil)
	if !demo {
		if token == "" {
			return nil, errors.New("missing session token: pass --token, set BUDDY_TOKEN or use --demo")
		}
		return client, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	session, err := client.DemoSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("demo session: %w", err)
	}
	return client.WithToken(session.AccessToken), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
