// internal/infra/telegram/question_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"question_rotation_bot/internal/app"
	"question_rotation_bot/internal/domain/question"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const refreshQuestionUnique = "refresh_question"

// RegisterQuestionHandlers serves /question and the refresh button attached to its reply.
// Users get their own region's question; the admin names a region explicitly.
func RegisterQuestionHandlers(ctx context.Context, b *telebot.Bot, questionService *app.QuestionService, adminTelegramID int64, baseLogger *logrus.Entry) {
	questionLogger := baseLogger.WithField("handler_group", "question")

	// resolve picks the region from the sender: the admin's choice or the user's own region.
	resolve := func(senderID int64, adminRegionArg string) (*question.Question, int64, error) {
		if senderID == adminTelegramID && adminRegionArg != "" {
			regionID, err := parseID(adminRegionArg)
			if err != nil {
				return nil, 0, errUsage
			}
			q, err := questionService.GetActiveQuestion(ctx, regionID)
			return q, regionID, err
		}
		q, u, err := questionService.GetActiveQuestionForUser(ctx, senderID)
		if u != nil {
			return q, u.RegionID, err
		}
		return q, 0, err
	}

	b.Handle("/question", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := questionLogger.WithFields(logrus.Fields{"command": "/question", "sender_id": senderID})

		var regionArg string
		if args := c.Args(); len(args) > 0 {
			regionArg = args[0]
		}
		q, regionID, err := resolve(senderID, regionArg)
		if err != nil {
			logCtx.WithError(err).Warn("Could not resolve active question")
			return c.Send(errorReply(err))
		}
		logCtx.WithFields(logrus.Fields{"region_id": regionID, "question_id": q.ID}).Info("Active question served")
		return c.Send(formatQuestion(q), refreshMarkup(regionID))
	})

	refreshBtn := (&telebot.ReplyMarkup{}).Data("Refresh", refreshQuestionUnique)
	b.Handle(&refreshBtn, func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := questionLogger.WithFields(logrus.Fields{"callback": refreshQuestionUnique, "sender_id": senderID})

		q, regionID, err := resolve(senderID, c.Callback().Data)
		if err != nil {
			logCtx.WithError(err).Warn("Could not refresh active question")
			return c.Respond(&telebot.CallbackResponse{Text: errorReply(err)})
		}
		if err := c.Edit(formatQuestion(q), refreshMarkup(regionID)); err != nil && !errors.Is(err, telebot.ErrSameMessageContent) {
			logCtx.WithError(err).Error("Could not update question message")
			return c.Respond(&telebot.CallbackResponse{Text: "Could not refresh the question."})
		}
		return c.Respond(&telebot.CallbackResponse{Text: "Up to date."})
	})
}

func formatQuestion(q *question.Question) string {
	return fmt.Sprintf("Question #%d:\n\n%s", q.Sequence, q.Content)
}

func refreshMarkup(regionID int64) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Refresh", refreshQuestionUnique, strconv.FormatInt(regionID, 10))))
	return markup
}
