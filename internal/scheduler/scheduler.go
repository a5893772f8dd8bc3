package scheduler

import (
	"context"
	"time"

	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/service"

	"github.com/robfig/cron/v3"
)

const dueBatchSize = 200

// Scheduler periodically delivers notifications whose scheduled time
// has arrived. Preferences and quiet hours are evaluated at delivery
// time, not at scheduling time.
type Scheduler struct {
	cron   *cron.Cron
	store  *service.NotificationService
	sender *service.SendService
	spec   string
	logger logger.ILogger
}

func New(store *service.NotificationService, sender *service.SendService, spec string, log logger.ILogger) *Scheduler {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	return &Scheduler{
		cron:   c,
		store:  store,
		sender: sender,
		spec:   spec,
		logger: log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.processDue); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler", "Scheduled delivery sweep started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) processDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	due, err := s.store.DueScheduled(ctx, dueBatchSize)
	if err != nil {
		s.logger.Error("Scheduler", "Failed to load due notifications", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if len(due) == 0 {
		return
	}

	delivered := 0
	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.sender.DeliverByID(ctx, n.ID); err != nil {
			s.logger.Error("Scheduler", "Scheduled delivery failed", map[string]interface{}{
				"notification_id": n.ID, "error": err.Error(),
			})
			continue
		}
		delivered++
	}

	s.logger.Info("Scheduler", "Scheduled delivery sweep finished", map[string]interface{}{
		"due": len(due), "delivered": delivered,
	})
}
