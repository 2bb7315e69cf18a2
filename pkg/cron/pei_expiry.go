package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"peiplan_backend/pkg/pei"
)

// InitPEIExpiryCron flips PEIs past their end date to EXPIRED once a day,
// which is what unlocks their renewal.
func InitPEIExpiryCron(service *pei.Service) {
	c := cron.New()

	_, err := c.AddFunc("30 3 * * *", func() {
		log.Println("Running PEI expiry sweep...")
		if err := service.ExpireOverdue(time.Now()); err != nil {
			log.Printf("PEI expiry sweep failed: %v", err)
		}
	})

	if err != nil {
		log.Printf("Could not initialize PEI expiry cron: %v", err)
		return
	}

	c.Start()
}
