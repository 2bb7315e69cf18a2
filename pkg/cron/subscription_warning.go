package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/email"
)

func InitSubscriptionWarningCron() {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		checkExpiringSubscriptions()
	})

	if err != nil {
		log.Printf("Could not initialize subscription warning cron: %v", err)
		return
	}

	c.Start()
}

func checkExpiringSubscriptions() {
	log.Println("Checking for expiring subscriptions...")

	warningDays := []int{7, 3}

	for _, days := range warningDays {
		targetDate := time.Now().AddDate(0, 0, days).Format("2006-01-02")

		var subs []model.Subscription
		err := database.DB.
			Where("status = ? AND DATE(end_date) = ?", model.SubscriptionStatusActive, targetDate).
			Find(&subs).Error
		if err != nil {
			log.Printf("Error fetching expiring subscriptions: %v", err)
			continue
		}

		log.Printf("Found %d subscriptions expiring in %d days", len(subs), days)

		for _, sub := range subs {
			if email.GlobalEmailService == nil || sub.EndDate == nil {
				continue
			}

			var director model.Profile
			err := database.DB.Preload("User").
				Where("subscription_id = ? AND role = ?", sub.ID, model.RoleDirector).
				First(&director).Error
			if err != nil {
				log.Printf("No director found for subscription %d: %v", sub.ID, err)
				continue
			}

			err = email.GlobalEmailService.SendSubscriptionExpiryWarning(
				director.User.Email,
				email.SubscriptionExpiryWarningData{
					FullName:   director.User.FullName,
					PlanType:   sub.PlanType,
					DaysLeft:   days,
					ExpiryDate: *sub.EndDate,
				},
			)
			if err != nil {
				log.Printf("Error sending expiry warning to %s: %v", director.User.Email, err)
			}
		}
	}
}
