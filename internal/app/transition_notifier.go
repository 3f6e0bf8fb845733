package app

import (
	"context"
	"fmt"

	"question_rotation_bot/internal/domain/region"
	domainTelegram "question_rotation_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// AdminTransitionNotifier reports region transitions to the admin chat.
type AdminTransitionNotifier struct {
	telegramClient domainTelegram.Client
	adminChatID    int64
	logger         *logrus.Entry
}

func NewAdminTransitionNotifier(tc domainTelegram.Client, adminChatID int64, logger *logrus.Entry) *AdminTransitionNotifier {
	return &AdminTransitionNotifier{telegramClient: tc, adminChatID: adminChatID, logger: logger}
}

// RegionAdvanced never fails the transition; delivery errors are only logged.
func (n *AdminTransitionNotifier) RegionAdvanced(_ context.Context, r *region.Region, previousCycle int) {
	text := fmt.Sprintf("Region %q (ID: %d) moved from cycle %d to cycle %d.", r.Name, r.ID, previousCycle, r.ActiveCycle)
	if err := n.telegramClient.SendMessage(n.adminChatID, text, nil); err != nil {
		n.logger.WithError(err).WithField("region_id", r.ID).Warn("Could not notify admin about region transition")
	}
}
