package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stompgofer/internal/channel"
	"stompgofer/internal/message"
	"stompgofer/internal/realtime"
)

var (
	listenRooms         []int64
	listenLocationRooms []int64
	listenNotifications bool
	listenEmail         string
)

func init() {
	listenCmd.Flags().Int64SliceVar(&listenRooms, "room", nil, "chat room ids to follow")
	listenCmd.Flags().Int64SliceVar(&listenLocationRooms, "location-room", nil, "chat room ids whose shared locations to follow")
	listenCmd.Flags().BoolVar(&listenNotifications, "notifications", false, "follow personal notifications of --email")
	listenCmd.Flags().StringVar(&listenEmail, "email", "", "user email (defaults to userEmail from config)")
	rootCmd.AddCommand(listenCmd)
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print incoming chat messages, notifications and locations as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		email := listenEmail
		if email == "" {
			email = cfg.UserEmail
		}
		if len(listenRooms) == 0 && len(listenLocationRooms) == 0 && !listenNotifications {
			return errors.New("nothing to listen to: use --room, --location-room or --notifications")
		}
		if listenNotifications && email == "" {
			return errors.New("--notifications requires --email or userEmail in config")
		}

		chatLog, err := channel.NewChatLog(cfg.DedupCacheSize)
		if err != nil {
			return err
		}
		inbox, err := channel.NewInbox(cfg.DedupCacheSize)
		if err != nil {
			return err
		}
		board := channel.NewLocationBoard()

		out := &lineWriter{enc: json.NewEncoder(os.Stdout), logger: logger}
		client := newClient(cfg, logger)

		chat := channel.NewChat(client, logger)
		for _, room := range listenRooms {
			chat.Subscribe(room, func(m message.ChatMessage) {
				if chatLog.Append(m) {
					out.write("chat", m)
				}
			})
		}
		loc := channel.NewLocation(client, logger)
		for _, room := range listenLocationRooms {
			loc.Subscribe(room, email, func(u message.LocationUpdate) {
				board.Update(u)
				out.write("location", u)
			})
		}
		if listenNotifications {
			channel.NewNotifications(client).Subscribe(email, func(n message.Notification) {
				if inbox.Add(n) {
					items := inbox.Items()
					out.write("notification", items[len(items)-1])
				}
			})
		}

		exhausted := make(chan struct{})
		var once sync.Once
		client.OnStateChange(func(ch realtime.StateChange) {
			logger.Debug().Str("from", ch.From.String()).Str("to", ch.To.String()).AnErr("cause", ch.Err).Msg("state change")
			if errors.Is(ch.Err, realtime.ErrReconnectExhausted) {
				once.Do(func() { close(exhausted) })
			}
		})

		logger.Info().
			Str("broker", cfg.BrokerURL).
			Ints64("rooms", listenRooms).
			Ints64("locationRooms", listenLocationRooms).
			Bool("notifications", listenNotifications).
			Msg("starting listener")
		client.Connect(cfg.Token)
		defer client.Disconnect()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info().
				Str("signal", sig.String()).
				Int("messages", chatLog.Len()).
				Int("notifications", inbox.Len()).
				Int("participants", len(board.All())).
				Msg("received shutdown signal")
			return nil
		case <-exhausted:
			return fmt.Errorf("connection lost: %w", realtime.ErrReconnectExhausted)
		}
	},
}

// lineWriter serializes JSON lines from the dispatch goroutine
type lineWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger zerolog.Logger
}

func (w *lineWriter) write(kind string, v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.enc.Encode(struct {
		Kind string `json:"kind"`
		Data any    `json:"data"`
	}{Kind: kind, Data: v})
	if err != nil {
		w.logger.Debug().Err(err).Str("kind", kind).Msg("failed to write output line")
	}
}
