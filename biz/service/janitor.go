package service

import (
	"time"

	"github.com/polycast/relay/internal/logger"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Janitor periodically reports registry stats. It never tears sessions down:
// only an explicit stop or a disconnect cancels a session.
type Janitor struct {
	registry  SessionRegistry
	scheduler *gocron.Scheduler
}

func newJanitor(registry SessionRegistry) *Janitor {
	return &Janitor{
		registry:  registry,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

func (j *Janitor) Start() {
	if _, err := j.scheduler.Every(30).Seconds().Do(j.report); err != nil {
		logger.SError("Janitor.Start: schedule err", zap.Error(err))
		return
	}
	j.scheduler.StartAsync()
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

func (j *Janitor) report() {
	sessions := j.registry.Snapshot()
	statusCounts := map[string]int{}
	for _, session := range sessions {
		for _, status := range session.DestinationStatuses() {
			statusCounts[status.Status]++
		}
	}
	logger.SInfo("Janitor.report: registry stats",
		zap.Int("activeSessions", len(sessions)),
		zap.Any("destinationStatuses", statusCounts))
}
