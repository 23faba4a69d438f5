package gateway

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type DiscordNotifier struct {
	Session   *discordgo.Session
	ChannelID string
}

// NewDiscordNotifier builds a send-only Discord gateway. Messages go
// out over the REST API, so the websocket gateway is never opened.
func NewDiscordNotifier(token string, channelID string) (*DiscordNotifier, error) {
	if channelID == "" {
		return nil, fmt.Errorf("discord channel ID is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	return &DiscordNotifier{
		Session:   session,
		ChannelID: channelID,
	}, nil
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) Send(text string) error {
	_, err := d.Session.ChannelMessageSend(d.ChannelID, text)
	return err
}

func (d *DiscordNotifier) Close() error {
	return d.Session.Close()
}
