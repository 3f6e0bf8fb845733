// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"question_rotation_bot/internal/domain/user"
	idb "question_rotation_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	adminTelegramID int64,
	userRepo user.Repository,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, admin %s! Use /help to see the available commands.", c.Sender().FirstName))
		}

		u, err := userRepo.GetByTelegramID(ctx, senderID)
		if err == nil {
			logCtx.WithFields(logrus.Fields{"user_id": u.ID, "region_id": u.RegionID}).Info("User identified as registered")
			return c.Send(fmt.Sprintf("Hello, %s! Send /question to see this cycle's question for your region.", u.Name))
		} else if !errors.Is(err, idb.ErrUserNotFound) {
			logCtx.WithError(err).Error("Error checking user status for /start command")
			return c.Send("Could not check your status. Please try again later.")
		}

		logCtx.Info("User is unknown")
		return c.Send("Hello! I share a rotating question with every region. Ask the administrator to add you to a region.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == adminTelegramID {
			return c.Send(adminHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}

		_, err := userRepo.GetByTelegramID(ctx, senderID)
		if err == nil {
			return c.Send("`/question` - show the active question of your region.\n`/help` - show this message.",
				&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		} else if !errors.Is(err, idb.ErrUserNotFound) {
			logCtx.WithError(err).Error("Error checking user status for /help command")
			return c.Send("Could not check your status. Please try again later.")
		}
		return c.Send("No commands are available to you. Ask the administrator to add you to a region.")
	})
}

func adminHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/add_region <name> <timezone> [days] [YYYY-MM-DD]`\n - Create a region. Defaults: configured cycle length, starting today.\n\n")
	helpText.WriteString("`/region <region_id>`\n - Show a region with its current cycle and next transition.\n\n")
	helpText.WriteString("`/list_regions`\n - List all regions.\n\n")
	helpText.WriteString("`/set_cycle <region_id> <days> [YYYY-MM-DD]`\n - Change the cycle length and optionally the start date.\n\n")
	helpText.WriteString("`/set_timezone <region_id> <timezone>`\n - Change the region's IANA timezone.\n\n")
	helpText.WriteString("`/rename_region <region_id> <name>`\n - Rename a region.\n\n")
	helpText.WriteString("`/delete_region <region_id>`\n - Delete a region with its questions and users.\n\n")
	helpText.WriteString("`/add_question <region_id> <sequence> <text>`\n - Add a question to the rotation.\n\n")
	helpText.WriteString("`/list_questions <region_id>`\n - List a region's questions in rotation order.\n\n")
	helpText.WriteString("`/delete_question <question_id>`\n - Remove a question.\n\n")
	helpText.WriteString("`/add_user <telegram_id> <region_id> <name>`\n - Register a user in a region.\n\n")
	helpText.WriteString("`/remove_user <telegram_id>`\n - Unregister a user.\n\n")
	helpText.WriteString("`/question <region_id>`\n - Show a region's active question.")
	return helpText.String()
}
