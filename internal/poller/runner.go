package poller

import (
	"context"
	"time"

	"github.com/tinytelemetry/byod/internal/interrupt"
	"github.com/tinytelemetry/byod/internal/model"
)

// Run loops until ctx is cancelled or a cycle turns fatal. The first cycle
// starts immediately; every later one waits for the current interval or an
// early wake, whichever comes first. No overlap, no backoff.
func (p *Poller) Run(ctx context.Context) error {
	trigger := model.TriggerStartup
	for {
		if !p.sched.First {
			p.publishNext(time.Now().Add(p.sched.Interval))
			reason, err := p.waiter.Wait(ctx, p.sched.Interval)
			if err != nil {
				return err
			}
			trigger = model.TriggerSchedule
			if reason == interrupt.Interrupted {
				trigger = model.TriggerInterrupt
			}
		}
		p.sched.First = false

		if err := p.PollOnce(ctx, trigger); err != nil {
			return err
		}
	}
}
