// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep runs the expired-quest check every minute. Ending
// is idempotent, so overlapping runs or a racing manual end are
// harmless.
func (s *QuestService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ended, err := s.CheckExpiredQuests(time.Now())
			if err != nil {
				log.Printf("[Scheduler] Expiry sweep failed: %v", err)
				return
			}
			if ended > 0 {
				log.Printf("✅ Expiry sweep ended %d quest(s)", ended)
			}
		}),
	)
}
