package gateway

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramNotifier struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

func NewTelegramNotifier(token string, chatID string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	id := int64(0)
	fmt.Sscanf(chatID, "%d", &id)
	if id == 0 {
		return nil, fmt.Errorf("invalid chat ID: %s", chatID)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramNotifier{
		Bot:    bot,
		ChatID: id,
	}, nil
}

func (tg *TelegramNotifier) Name() string {
	return "telegram"
}

func (tg *TelegramNotifier) Send(text string) error {
	msg := tgbotapi.NewMessage(tg.ChatID, text)
	msg.ParseMode = "Markdown" // Enable markdown for better alerts
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramNotifier) Close() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
