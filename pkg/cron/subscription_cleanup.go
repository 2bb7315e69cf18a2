package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"peiplan_backend/pkg/subscription"
)

// cleanupSchedule runs the orphan sweep every 10 seconds so abandoned
// checkouts never linger past their 24 hour grace window.
const cleanupSchedule = "*/10 * * * * *"

// InitSubscriptionCleanupCron removes subscriptions abandoned at checkout:
// older than a day and never attached to a director profile.
func InitSubscriptionCleanupCron(reconciler *subscription.Reconciler) {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(cleanupSchedule, func() {
		if err := reconciler.RemoveAbandoned(time.Now()); err != nil {
			log.Printf("Subscription cleanup failed: %v", err)
		}
	})

	if err != nil {
		log.Printf("Could not initialize subscription cleanup cron: %v", err)
		return
	}

	c.Start()
}
