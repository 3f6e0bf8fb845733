package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"question_rotation_bot/internal/app"
	"question_rotation_bot/internal/domain/cycle"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// adminOnly rejects every sender except the configured admin before the handler runs.
func adminOnly(adminTelegramID int64, baseLogger *logrus.Entry) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender().ID != adminTelegramID {
				baseLogger.WithFields(logrus.Fields{
					"handler":   c.Text(),
					"sender_id": c.Sender().ID,
				}).Warn("Unauthorized access attempt")
				return c.Send(errorReply(app.ErrAdminNotAuthorized))
			}
			return next(c)
		}
	}
}

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, calc cycle.Calculator, adminTelegramID int64, baseLogger *logrus.Entry) {
	admin := b.Group()
	admin.Use(adminOnly(adminTelegramID, baseLogger))

	commandLogger := func(c telebot.Context, command string) *logrus.Entry {
		return baseLogger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
	}
	fail := func(c telebot.Context, log *logrus.Entry, err error, what string) error {
		log.WithError(err).Warn(what)
		return c.Send(errorReply(err))
	}

	admin.Handle("/add_region", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/add_region")
		handlerLogger.Info("Command received")

		args, err := parseAddRegionArgs(c.Args(), calc)
		if err != nil {
			if err == errUsage {
				return c.Send("Invalid command format. Use: /add_region <name> <timezone> [days] [YYYY-MM-DD]")
			}
			return fail(c, handlerLogger, err, "Invalid region arguments")
		}

		r, err := adminService.CreateRegion(ctx, c.Sender().ID, args.name, args.timezone, args.cycleDuration, args.startDate)
		if err != nil {
			return fail(c, handlerLogger, err, "Failed to create region")
		}
		view, err := adminService.GetRegion(ctx, c.Sender().ID, r.ID)
		if err != nil {
			return fail(c, handlerLogger, err, "Failed to load created region")
		}
		return c.Send("Region created.\n\n" + formatRegion(view))
	})

	admin.Handle("/region", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/region")
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /region <region_id>")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		view, err := adminService.GetRegion(ctx, c.Sender().ID, regionID)
		if err != nil {
			return fail(c, handlerLogger.WithField("region_id", regionID), err, "Failed to load region")
		}
		return c.Send(formatRegion(view))
	})

	admin.Handle("/list_regions", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/list_regions")
		views, err := adminService.ListRegions(ctx, c.Sender().ID)
		if err != nil {
			return fail(c, handlerLogger, err, "Failed to list regions")
		}
		if len(views) == 0 {
			return c.Send("No regions yet. Create one with /add_region.")
		}
		handlerLogger.WithField("regions_count", len(views)).Info("Successfully retrieved region list")

		var response strings.Builder
		response.WriteString("--- Regions ---\n")
		for _, v := range views {
			response.WriteString(fmt.Sprintf("ID: %d, Name: %s, Timezone: %s, Cycle: %d (every %d days)\n",
				v.Region.ID, v.Region.Name, v.Region.Timezone, v.CurrentCycle, v.Region.CycleConfig.CycleDuration))
		}
		return c.Send(response.String())
	})

	admin.Handle("/set_cycle", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/set_cycle")
		args := c.Args()
		if len(args) < 2 || len(args) > 3 {
			return c.Send("Invalid command format. Use: /set_cycle <region_id> <days> [YYYY-MM-DD]")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		handlerLogger = handlerLogger.WithField("region_id", regionID)

		duration, err := strconv.Atoi(args[1])
		if err != nil {
			return c.Send("Error: the cycle length must be a number of days.")
		}
		patch := app.RegionPatch{CycleDuration: &duration}

		if len(args) == 3 {
			current, err := adminService.GetRegion(ctx, c.Sender().ID, regionID)
			if err != nil {
				return fail(c, handlerLogger, err, "Failed to load region")
			}
			start, err := parseStartDate(args[2], current.Region.Timezone, calc)
			if err != nil {
				return fail(c, handlerLogger, err, "Invalid start date")
			}
			patch.StartDate = &start
		}
		return applyPatch(ctx, c, adminService, handlerLogger, regionID, patch)
	})

	admin.Handle("/set_timezone", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/set_timezone")
		args := c.Args()
		if len(args) != 2 {
			return c.Send("Invalid command format. Use: /set_timezone <region_id> <timezone>")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		tz := args[1]
		return applyPatch(ctx, c, adminService, handlerLogger.WithField("region_id", regionID), regionID, app.RegionPatch{Timezone: &tz})
	})

	admin.Handle("/rename_region", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/rename_region")
		args := c.Args()
		if len(args) < 2 {
			return c.Send("Invalid command format. Use: /rename_region <region_id> <name>")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		name := restOf(args, 1)
		return applyPatch(ctx, c, adminService, handlerLogger.WithField("region_id", regionID), regionID, app.RegionPatch{Name: &name})
	})

	admin.Handle("/delete_region", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/delete_region")
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /delete_region <region_id>")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		handlerLogger = handlerLogger.WithField("region_id", regionID)
		if err := adminService.DeleteRegion(ctx, c.Sender().ID, regionID); err != nil {
			return fail(c, handlerLogger, err, "Failed to delete region")
		}
		handlerLogger.Info("Region deleted")
		return c.Send(fmt.Sprintf("Region %d deleted with its questions and users.", regionID))
	})

	admin.Handle("/add_question", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/add_question")
		args := c.Args()
		if len(args) < 3 {
			return c.Send("Invalid command format. Use: /add_question <region_id> <sequence> <text>")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		sequence, err := strconv.Atoi(args[1])
		if err != nil {
			return c.Send("Error: the sequence must be a number.")
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"region_id": regionID, "sequence": sequence})

		q, err := adminService.AddQuestion(ctx, c.Sender().ID, regionID, sequence, restOf(args, 2))
		if err != nil {
			return fail(c, handlerLogger, err, "Failed to add question")
		}
		handlerLogger.WithField("question_id", q.ID).Info("Question added")
		return c.Send(fmt.Sprintf("Question %d added to region %d at position %d.", q.ID, regionID, q.Sequence))
	})

	admin.Handle("/list_questions", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/list_questions")
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /list_questions <region_id>")
		}
		regionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		questions, err := adminService.ListQuestions(ctx, c.Sender().ID, regionID)
		if err != nil {
			return fail(c, handlerLogger.WithField("region_id", regionID), err, "Failed to list questions")
		}
		if len(questions) == 0 {
			return c.Send("This region has no questions yet.")
		}
		var response strings.Builder
		response.WriteString(fmt.Sprintf("--- Questions of region %d ---\n", regionID))
		for _, q := range questions {
			response.WriteString(fmt.Sprintf("ID: %d, Sequence: %d, Text: %s\n", q.ID, q.Sequence, q.Content))
		}
		return c.Send(response.String())
	})

	admin.Handle("/delete_question", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/delete_question")
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /delete_question <question_id>")
		}
		questionID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		if err := adminService.DeleteQuestion(ctx, c.Sender().ID, questionID); err != nil {
			return fail(c, handlerLogger.WithField("question_id", questionID), err, "Failed to delete question")
		}
		return c.Send(fmt.Sprintf("Question %d deleted.", questionID))
	})

	admin.Handle("/add_user", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/add_user")
		args := c.Args()
		if len(args) < 3 {
			return c.Send("Invalid command format. Use: /add_user <telegram_id> <region_id> <name>")
		}
		telegramID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: Telegram ID must be a number.")
		}
		regionID, err := parseID(args[1])
		if err != nil {
			return c.Send("Error: " + err.Error())
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"user_telegram_id": telegramID, "region_id": regionID})

		u, err := adminService.AddUser(ctx, c.Sender().ID, telegramID, restOf(args, 2), regionID)
		if err != nil {
			return fail(c, handlerLogger, err, "Failed to add user")
		}
		handlerLogger.WithField("new_user_id", u.ID).Info("User added successfully")
		return c.Send(fmt.Sprintf("User %s (Telegram ID: %d) added to region %d.", u.Name, u.TelegramID, u.RegionID))
	})

	admin.Handle("/remove_user", func(c telebot.Context) error {
		handlerLogger := commandLogger(c, "/remove_user")
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /remove_user <telegram_id>")
		}
		telegramID, err := parseID(args[0])
		if err != nil {
			return c.Send("Error: Telegram ID must be a number.")
		}
		if err := adminService.RemoveUser(ctx, c.Sender().ID, telegramID); err != nil {
			return fail(c, handlerLogger.WithField("user_telegram_id", telegramID), err, "Failed to remove user")
		}
		return c.Send(fmt.Sprintf("User with Telegram ID %d removed.", telegramID))
	})
}

func applyPatch(ctx context.Context, c telebot.Context, adminService *app.AdminService, log *logrus.Entry, regionID int64, patch app.RegionPatch) error {
	if _, err := adminService.UpdateRegion(ctx, c.Sender().ID, regionID, patch); err != nil {
		log.WithError(err).Warn("Failed to update region")
		return c.Send(errorReply(err))
	}
	view, err := adminService.GetRegion(ctx, c.Sender().ID, regionID)
	if err != nil {
		log.WithError(err).Warn("Failed to load updated region")
		return c.Send(errorReply(err))
	}
	log.Info("Region updated")
	return c.Send("Region updated.\n\n" + formatRegion(view))
}

func formatRegion(v *app.RegionView) string {
	r := v.Region
	loc, err := cycle.LoadLocation(r.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return fmt.Sprintf("ID: %d\nName: %s\nTimezone: %s\nCycle length: %d days\nStart: %s\nActive cycle: %d\nNext transition: %s",
		r.ID, r.Name, r.Timezone, r.CycleConfig.CycleDuration,
		r.CycleConfig.StartDate.In(loc).Format("2006-01-02 15:04"),
		v.CurrentCycle,
		v.NextTransition.In(loc).Format("2006-01-02 15:04 MST"))
}
