package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"clinic-chat-service/clients/go/clinicchat"
)

var (
	flagBaseURL string
	flagToken   string
)

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Clinic chat CLI",
	Long:  "Command-line client for the clinic chat service.\nList rooms, watch a room live, and send messages.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "url", "", "service base URL (default $CHAT_URL or http://localhost:8083)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (default $CHAT_TOKEN)")

	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
}

// getClient builds an API client from flags, falling back to the environment.
func getClient() (*clinicchat.Client, error) {
	_ = godotenv.Load()

	baseURL := flagBaseURL
	if baseURL == "" {
		baseURL = os.Getenv("CHAT_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8083"
	}

	token := flagToken
	if token == "" {
		token = os.Getenv("CHAT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("no token: pass --token or set CHAT_TOKEN")
	}

	return clinicchat.NewClient(baseURL, token), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
