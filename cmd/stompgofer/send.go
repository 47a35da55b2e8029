package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stompgofer/internal/channel"
	"stompgofer/internal/config"
	"stompgofer/internal/message"
	"stompgofer/internal/realtime"
)

var (
	chatRoom    int64
	chatContent string
	chatType    string
	chatEmail   string

	locationRoom    int64
	locationEmail   string
	locationLat     float64
	locationLng     float64
	locationAddress string
)

func init() {
	chatSendCmd.Flags().Int64Var(&chatRoom, "room", 0, "chat room id")
	chatSendCmd.Flags().StringVar(&chatContent, "content", "", "message text")
	chatSendCmd.Flags().StringVar(&chatType, "type", string(message.MessageTypeText), "message type (TEXT, IMAGE, FILE, ENTER, LEAVE, OFFER)")
	chatSendCmd.Flags().StringVar(&chatEmail, "email", "", "sender email (defaults to userEmail from config)")
	_ = chatSendCmd.MarkFlagRequired("room")
	chatCmd.AddCommand(chatSendCmd)
	rootCmd.AddCommand(chatCmd)

	locationSendCmd.Flags().Int64Var(&locationRoom, "room", 0, "chat room id")
	locationSendCmd.Flags().StringVar(&locationEmail, "email", "", "sharer email (defaults to userEmail from config)")
	locationSendCmd.Flags().Float64Var(&locationLat, "lat", 0, "latitude")
	locationSendCmd.Flags().Float64Var(&locationLng, "lng", 0, "longitude")
	locationSendCmd.Flags().StringVar(&locationAddress, "address", "", "human readable address")
	_ = locationSendCmd.MarkFlagRequired("room")
	_ = locationSendCmd.MarkFlagRequired("lat")
	_ = locationSendCmd.MarkFlagRequired("lng")
	locationCmd.AddCommand(locationSendCmd)
	rootCmd.AddCommand(locationCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat room commands",
}

var chatSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one chat message and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishOnce(cmd.Context(), func(cfg *config.Config, client *realtime.Client, logger zerolog.Logger) error {
			req := message.ChatMessageRequest{
				ChatroomID:  chatRoom,
				SenderEmail: valueOrDefault(chatEmail, cfg.UserEmail),
				Content:     chatContent,
				MessageType: message.MessageType(chatType),
			}
			return channel.NewChat(client, logger).Send(req)
		})
	},
}

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Location sharing commands",
}

var locationSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Share one position in a chat room and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishOnce(cmd.Context(), func(cfg *config.Config, client *realtime.Client, logger zerolog.Logger) error {
			email := valueOrDefault(locationEmail, cfg.UserEmail)
			if email == "" {
				return errors.New("--email or userEmail in config is required")
			}
			return channel.NewLocation(client, logger).SendUpdate(message.LocationUpdate{
				ChatroomID: locationRoom,
				Email:      email,
				Latitude:   locationLat,
				Longitude:  locationLng,
				Address:    locationAddress,
			})
		})
	},
}

// publishOnce connects, runs publish and disconnects
func publishOnce(ctx context.Context, publish func(*config.Config, *realtime.Client, zerolog.Logger) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client := newClient(cfg, logger)

	ctx, cancel := context.WithTimeout(ctx, connectBudget(cfg))
	defer cancel()

	if err := connectAndWait(ctx, client, cfg.Token); err != nil {
		client.Disconnect()
		return fmt.Errorf("connect to %s: %w", cfg.BrokerURL, err)
	}
	defer client.Disconnect()

	if err := publish(cfg, client, logger); err != nil {
		return err
	}
	logger.Info().Msg("sent")
	return nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
