package cron

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupScheduleRunsEveryTenSeconds(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	schedule, err := parser.Parse(cleanupSchedule)
	require.NoError(t, err)

	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	next := schedule.Next(at)
	assert.Equal(t, at.Add(10*time.Second), next)
	assert.Equal(t, next.Add(10*time.Second), schedule.Next(next))
}
