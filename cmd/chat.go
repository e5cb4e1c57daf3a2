package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/internal/websocket"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one chat message to a running server over the websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			conn, _, err := gorilla.DefaultDialer.DialContext(cmd.Context(), url, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer conn.Close()

			request := websocket.ChatMessage{
				BaseMessage: websocket.BaseMessage{
					Type:      websocket.MessageTypeChat,
					Timestamp: time.Now().Format(time.RFC3339),
					MessageID: uuid.NewString(),
				},
				Message: strings.Join(args, " "),
			}
			if err := conn.WriteJSON(request); err != nil {
				return fmt.Errorf("failed to send chat: %w", err)
			}

			conn.SetReadDeadline(time.Now().Add(timeout))
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return fmt.Errorf("failed to read reply: %w", err)
				}

				var base websocket.BaseMessage
				if err := json.Unmarshal(data, &base); err != nil {
					return fmt.Errorf("invalid frame: %w", err)
				}
				if base.MessageID != request.MessageID {
					continue
				}

				switch base.Type {
				case websocket.MessageTypeReply:
					var reply websocket.ReplyMessage
					if err := json.Unmarshal(data, &reply); err != nil {
						return fmt.Errorf("invalid reply: %w", err)
					}
					for i, m := range reply.Messages {
						logger.Info("Reply",
							zap.Int("index", i),
							zap.String("text", m.Text),
							zap.String("facialExpression", string(m.FacialExpression)),
							zap.String("animation", string(m.Animation)),
							zap.Int("audioBytes", len(m.Audio)),
							zap.Bool("complete", m.IsComplete()))
					}
					return nil
				case websocket.MessageTypeError:
					var frame websocket.ErrorMessage
					if err := json.Unmarshal(data, &frame); err != nil {
						return fmt.Errorf("invalid error frame: %w", err)
					}
					return fmt.Errorf("server error %s: %s", frame.Code, frame.Message)
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:3000/ws", "websocket endpoint")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the reply")
	return cmd
}
