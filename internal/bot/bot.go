package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/lexiday/pkg/logger"
)

// Sender is the part of the Telegram API the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MenuButton represents a button under a message
type MenuButton struct {
	Text string
	URL  string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonURL(button.Text, button.URL))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot sends daily reminders over Telegram
type Bot struct {
	api    Sender
	config *Config
	log    *zap.Logger
}

// New authorizes against the Telegram API with token
func New(token string, config *Config, log *zap.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is not set")
	}
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	b := NewWithSender(botAPI, config, log)
	b.log.Info("telegram bot authorized", zap.String("account", botAPI.Self.UserName))
	return b, nil
}

// NewWithSender builds a bot around an existing sender
func NewWithSender(api Sender, config *Config, log *zap.Logger) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	return &Bot{api: api, config: config, log: logger.OrNop(log)}
}

// SendReminder implements the scheduler's Notifier
func (b *Bot) SendReminder(chatID int64, name string, streak int) error {
	msg := tgbotapi.NewMessage(chatID, ReminderText(name, streak))
	if b.config.AppURL != "" {
		msg.ReplyMarkup = createKeyboard([][]MenuButton{
			{{Text: b.config.ButtonText, URL: b.config.AppURL}},
		})
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to chat %d: %w", chatID, err)
	}
	b.log.Debug("reminder sent", zap.Int64("chat_id", chatID), zap.Int("streak", streak))
	return nil
}

// ReminderText formats the reminder body
func ReminderText(name string, streak int) string {
	greeting := "Hi!"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s!", name)
	}
	switch {
	case streak == 1:
		return greeting + " Your new word for today is waiting. 🔥 Keep your 1-day streak going."
	case streak > 1:
		return fmt.Sprintf("%s Your new word for today is waiting. 🔥 Keep your %d-day streak going.", greeting, streak)
	default:
		return greeting + " Your new word for today is waiting. Start a streak today."
	}
}
