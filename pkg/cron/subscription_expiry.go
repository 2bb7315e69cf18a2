package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"peiplan_backend/pkg/subscription"
)

// InitSubscriptionExpiryCron runs the daily sweep that expires overdue
// subscriptions, cancelling them upstream first.
func InitSubscriptionExpiryCron(reconciler *subscription.Reconciler) {
	c := cron.New()

	_, err := c.AddFunc("0 3 * * *", func() {
		log.Println("Running subscription expiry sweep...")
		if err := reconciler.ExpireOverdue(time.Now()); err != nil {
			log.Printf("Subscription expiry sweep failed: %v", err)
		}
	})

	if err != nil {
		log.Printf("Could not initialize subscription expiry cron: %v", err)
		return
	}

	c.Start()
}
