package telegram

import "gopkg.in/telebot.v3"

// Client sends bot messages, e.g. transition notices to the admin chat.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
