package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <room-id> <text>",
	Short: "Send a message to a room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid room id %q", args[0])
		}

		client, err := getClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg, err := client.InsertMessage(ctx, roomID, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("sent #%d at %s\n", msg.ID, msg.CreatedAt.Local().Format("15:04:05"))
		return nil
	},
}
