package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

func newListenCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect and print incoming events",
		Long: `Connect to the gateway, keep the connection alive and print every event.
With --peer the conversation room with that user is joined on every connect
and each line read from stdin is sent to them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listen(cmd.Context(), *cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&cfg.PeerID, "peer", cfg.PeerID, "user to converse with")
	return cmd
}

func listen(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	if cfg.Token == "" {
		return errors.New("a token is required (--token or CHAT_TOKEN)")
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	m, err := client.NewManager(client.Config{BaseURL: cfg.ServerURL}, client.NewWSDialer(cfg.Origin, log), log)
	if err != nil {
		return err
	}
	defer m.Close()

	peer := chat.Identity(cfg.PeerID)
	fatal := make(chan error, 1)
	m.Subscribe("cli", printHandlers(m, peer, out, fatal))
	m.Connect(client.Credential{Token: cfg.Token, Class: auth.ParseClientClass(cfg.ClientClass)})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fatal:
			return err
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if peer == "" {
				fmt.Fprintln(out, color.Yellow.Sprint("no --peer set; message not sent"))
				continue
			}
			m.SendMessage(peer, line)
		}
	}
}

// printHandlers prints every event to out. Authentication failures and
// exhausted endpoints end the session through fatal.
func printHandlers(m *client.Manager, peer chat.Identity, out io.Writer, fatal chan<- error) client.Handlers {
	return client.Handlers{
		OnConnect: func() {
			st := m.Status()
			fmt.Fprintln(out, color.Green.Sprintf("connected to %s as %s", st.Endpoint, st.Session.UserID))
			if peer != "" {
				m.JoinRoom(chat.ConversationRoom(st.Session.UserID, peer))
			}
		},
		OnDisconnect: func(reason string) {
			fmt.Fprintln(out, color.Yellow.Sprintf("disconnected: %s", reason))
		},
		OnError: func(err error) {
			fmt.Fprintln(out, color.Red.Sprintf("error: %v", err))
			if errors.Is(err, chat.ErrAuthentication) || errors.Is(err, chat.ErrCandidatesExhausted) {
				select {
				case fatal <- err:
				default:
				}
			}
		},
		OnNewMessage: func(msg chat.NewMessage) {
			fmt.Fprintf(out, "%s %s: %s\n",
				color.Gray.Sprint(msg.CreatedAt.Local().Format("15:04:05")),
				color.Cyan.Sprint(msg.SenderID),
				msg.Message)
		},
		OnStatusUpdate: func(u chat.UserStatusUpdate) {
			fmt.Fprintln(out, color.Gray.Sprintf("%s is %s", u.UserID, u.Status))
		},
		OnMessagesRead: func(r chat.MessagesRead) {
			fmt.Fprintln(out, color.Gray.Sprintf("%s read %d message(s)", r.ReaderID, r.Count))
		},
		OnRoomJoined: func(room chat.RoomID) {
			fmt.Fprintln(out, color.Gray.Sprintf("joined %s", room))
		},
		OnRoomLeft: func(room chat.RoomID) {
			fmt.Fprintln(out, color.Gray.Sprintf("left %s", room))
		},
	}
}
