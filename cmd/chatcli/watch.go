package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clinic-chat-service/clients/go/clinicchat"
)

var (
	watchSenderID int
	watchRole     string
)

var watchCmd = &cobra.Command{
	Use:   "watch <room-id>",
	Short: "Watch a room live and send messages interactively",
	Long:  "Loads recent history, follows live inserts, and sends each line typed on stdin as a message. Type /more to load older history, /quit to exit.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid room id %q", args[0])
		}

		client, err := getClient()
		if err != nil {
			return err
		}
		role := clinicchat.Role(watchRole)
		if role != clinicchat.RolePatient && role != clinicchat.RoleAdmin {
			return fmt.Errorf("invalid role %q (patient or admin)", watchRole)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := client.Subscribe(ctx, roomID)
		if err != nil {
			return err
		}
		defer sub.Close()

		view := clinicchat.NewRoomView(roomID)
		if err := loadOlder(ctx, client, view); err != nil {
			return err
		}
		render(view)

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		type sendOutcome struct {
			tempID     string
			generation uint64
			err        error
		}
		outcomes := make(chan sendOutcome, 8)

		for {
			select {
			case msg, ok := <-sub.Events():
				if !ok {
					if subErr := sub.Err(); subErr != nil {
						return fmt.Errorf("subscription dropped: %w", subErr)
					}
					return nil
				}
				view.Apply(clinicchat.ViewEvent{
					Kind:       clinicchat.LiveMessage,
					Generation: view.Generation(),
					Live:       msg,
				})
				render(view)

			case out := <-outcomes:
				view.Apply(clinicchat.ViewEvent{
					Kind:       clinicchat.SendResult,
					Generation: out.generation,
					TempID:     out.tempID,
					Err:        out.err,
				})
				render(view)

			case line, ok := <-lines:
				if !ok {
					return nil
				}
				line = strings.TrimSpace(line)
				switch {
				case line == "":
					continue
				case line == "/quit":
					return nil
				case line == "/more":
					if err := loadOlder(ctx, client, view); err != nil {
						fmt.Fprintf(os.Stderr, "load older: %v\n", err)
					}
					render(view)
				default:
					entry, err := view.StageSend(watchSenderID, role, line)
					if err != nil {
						fmt.Fprintf(os.Stderr, "send: %v\n", err)
						continue
					}
					render(view)
					generation := view.Generation()
					go func() {
						_, sendErr := client.InsertMessage(ctx, roomID, line)
						outcomes <- sendOutcome{tempID: entry.TempID, generation: generation, err: sendErr}
					}()
				}
			}
		}
	},
}

// loadOlder fetches one history page into the view. Fetch and apply happen on
// the caller's goroutine, so the in-flight guard never trips here.
func loadOlder(ctx context.Context, client *clinicchat.Client, view *clinicchat.RoomView) error {
	cursor, generation, ok := view.BeginLoadOlder()
	if !ok {
		return nil
	}
	page, err := client.FetchMessagePage(ctx, view.RoomID(), cursor)
	view.Apply(clinicchat.ViewEvent{
		Kind:       clinicchat.PageLoaded,
		Generation: generation,
		Page:       page,
		Err:        err,
	})
	return err
}

func render(view *clinicchat.RoomView) {
	fmt.Print("\033[2J\033[H")
	for _, m := range view.Messages() {
		marker := ""
		switch m.Status {
		case clinicchat.StatusSending:
			marker = " [sending]"
		case clinicchat.StatusFailed:
			marker = " [failed]"
		}
		fmt.Printf("%s %-8s %s%s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderRole, m.Content, marker)
	}
	fmt.Print("> ")
}

func init() {
	watchCmd.Flags().IntVar(&watchSenderID, "sender-id", 0, "local user id for optimistic rendering")
	watchCmd.Flags().StringVar(&watchRole, "role", "patient", "viewer role (patient or admin)")
}
