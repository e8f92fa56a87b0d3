package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clinic-chat-service/clients/go/clinicchat"
)

var (
	roomsPage     int
	roomsPageSize int
	roomsSearch   string
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms ordered by latest activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var rooms []clinicchat.RoomSummary
		if roomsSearch != "" {
			rooms, err = client.SearchRooms(ctx, roomsSearch)
		} else {
			rooms, err = client.ListRooms(ctx, roomsPage, roomsPageSize)
		}
		if err != nil {
			return err
		}

		if len(rooms) == 0 {
			fmt.Println("no rooms")
			return nil
		}
		for _, r := range rooms {
			last := "no messages"
			if r.LastMessageAt != nil {
				last = r.LastMessageAt.Local().Format("2006-01-02 15:04")
			}
			unread := ""
			if r.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", r.UnreadCount)
			}
			fmt.Printf("#%d  %-20s %-12s %s%s\n", r.RoomID, r.PatientName, r.Category, last, unread)
		}
		return nil
	},
}

func init() {
	roomsCmd.Flags().IntVar(&roomsPage, "page", 1, "page number")
	roomsCmd.Flags().IntVar(&roomsPageSize, "page-size", 10, "rooms per page")
	roomsCmd.Flags().StringVar(&roomsSearch, "search", "", "filter by patient name instead of paginating")
}
