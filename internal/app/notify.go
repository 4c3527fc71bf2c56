package app

import (
	"github.com/oggyb/muzz-consent/internal/notify"
	"github.com/oggyb/muzz-consent/internal/repository"
)

// NewSender returns the webhook relay sender when DELIVERY_WEBHOOK_URL is
// set, and the log sender otherwise.
func (a *AppContext) NewSender() notify.Sender {
	if url := a.Config.Delivery.WebhookURL; url != "" {
		a.Logger.Info("delivering notifications via webhook", "url", url)
		return notify.NewWebhookSender(url, nil)
	}
	a.Logger.Info("no delivery webhook configured, logging notifications")
	return notify.LogSender{Logger: a.Logger}
}

// NewBatcher wires the notification batcher from config. The Redis lock is
// used when Redis is configured.
func (a *AppContext) NewBatcher(sender notify.Sender) *notify.Batcher {
	var locker notify.Locker
	if a.RedisCache != nil {
		locker = a.RedisCache
	}

	bc := a.Config.Batcher
	return notify.NewBatcher(
		repository.NewEventRepository(a.DB),
		repository.NewProfileRepository(a.DB),
		sender,
		locker,
		a.Clock,
		a.Logger.With("component", "batcher"),
		notify.Options{
			Types:       bc.Types,
			Dwell:       bc.Dwell,
			MaxGroups:   bc.MaxGroups,
			ScanLimit:   bc.ScanLimit,
			Previews:    bc.Previews,
			SendTimeout: bc.SendTimeout,
			SendRate:    bc.SendRate,
			LockTTL:     bc.LockTTL,
			MaxAttempts: bc.MaxAttempts,
		},
	)
}
