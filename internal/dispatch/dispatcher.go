// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/wabroadcast/backend/internal/events"
	"github.com/wabroadcast/backend/internal/gateway"
	"github.com/wabroadcast/backend/internal/model"
	"github.com/wabroadcast/backend/internal/store"
)

// ErrNoActiveAccounts means rotation found no connected sending account.
// The condition is transient: nothing is mutated and the tick is retried at
// the normal cadence.
var ErrNoActiveAccounts = errors.New("no active sending accounts")

// Dispatcher is the single worker that advances exactly one unit of work per
// tick: pick the one eligible campaign, send to its next pending recipient,
// persist, reschedule. It runs on one goroutine and arms the next tick only
// after the current one has fully completed, so at most one gateway send is
// in flight system-wide. Persistence goes through the store Guard shared with
// the admission API, so a concurrent create or delete cannot overwrite a
// tick's just-persisted recipient state.
//
// A hung gateway call stalls dispatch for every campaign; that is a known
// limitation of the single-worker design, bounded by the gateway client's
// request timeout.
type Dispatcher struct {
	Store   *store.Guard
	Gateway gateway.Client
	Events  events.Publisher

	// Interval is the idle poll cadence; ticks that performed a send wait
	// for the campaign's randomized delay window instead.
	Interval time.Duration

	// Now and Rand exist so tests can pin the clock and the rotation pick.
	Now  func() time.Time
	Rand *rand.Rand

	stopChan chan struct{}
	stopOnce sync.Once

	// mutated record whose persist failed; flushed before any new work so a
	// recipient already marked terminal is never sent again
	unsaved *model.Campaign
}

func New(st *store.Guard, gw gateway.Client, pub events.Publisher, interval time.Duration) *Dispatcher {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Dispatcher{
		Store:    st,
		Gateway:  gw,
		Events:   pub,
		Interval: interval,
		Now:      time.Now,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stopChan: make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
	log.Println("Dispatcher started")
}

// Stop is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
		log.Println("Dispatcher stopped")
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	timer := time.NewTimer(d.Interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			timer.Reset(d.Tick(ctx))
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick executes one unit of work and returns how long to wait before the
// next tick. Every failure is handled locally; Tick never panics the loop.
func (d *Dispatcher) Tick(ctx context.Context) time.Duration {
	// retry a persist that failed last tick before touching new work
	if d.unsaved != nil {
		if err := d.writeBack(ctx, d.unsaved); err != nil {
			log.Printf("Dispatcher: persist still failing for campaign %s: %v", d.unsaved.ID, err)
			return d.Interval
		}
		d.unsaved = nil
	}

	campaigns, err := d.Store.Load(ctx)
	if err != nil {
		log.Printf("Dispatcher: cannot load campaigns: %v", err)
		return d.Interval
	}

	c := d.eligible(campaigns)
	if c == nil {
		return d.Interval
	}

	if c.Status == model.StatusScheduled {
		c.Status = model.StatusInProgress
		if err := d.writeBack(ctx, c); err != nil {
			d.unsaved = c
			log.Printf("Dispatcher: cannot persist start of campaign %s: %v", c.ID, err)
			return d.Interval
		}
		d.publish(ctx, events.Event{
			Type:         events.CampaignStarted,
			CampaignID:   c.ID,
			CampaignName: c.Name,
			At:           d.Now(),
		})
		log.Printf("Dispatcher: campaign %s (%s) started", c.ID, c.Name)
	}

	idx := c.Cursor
	for idx < len(c.Recipients) && c.Recipients[idx].DeliveryStatus != model.DeliveryPending {
		idx++
	}
	if idx >= len(c.Recipients) {
		c.Cursor = len(c.Recipients)
		d.finalize(ctx, c)
		return d.Interval
	}

	sender, err := d.resolveSender(ctx, c)
	if err != nil {
		// transient capacity failure, recipient state untouched
		log.Printf("Dispatcher: campaign %s has no usable sender: %v", c.ID, err)
		return d.Interval
	}

	recipient := &c.Recipients[idx]
	if err := d.Gateway.SendText(ctx, sender, recipient.Number, c.Message); err != nil {
		recipient.DeliveryStatus = model.DeliveryFailed
		c.FailedCount++
		if c.Rotating() {
			// the account may be unhealthy, force a re-pick next tick
			c.CurrentSender = ""
		}
		log.Printf("Dispatcher: send to %s failed for campaign %s: %v", recipient.Number, c.ID, err)
		d.publish(ctx, events.Event{
			Type:         events.MessageFailed,
			CampaignID:   c.ID,
			CampaignName: c.Name,
			Recipient:    recipient.Number,
			Sender:       sender,
			At:           d.Now(),
		})
	} else {
		recipient.DeliveryStatus = model.DeliverySent
		c.SentCount++
		if c.Rotating() {
			c.SentSinceRotation++
		}
		log.Printf("Dispatcher: sent to %s via %s for campaign %s", recipient.Number, sender, c.ID)
		d.publish(ctx, events.Event{
			Type:         events.MessageSent,
			CampaignID:   c.ID,
			CampaignName: c.Name,
			Recipient:    recipient.Number,
			Sender:       sender,
			At:           d.Now(),
		})
	}

	c.Cursor = idx + 1
	if c.Exhausted() {
		d.applyFinalStatus(c)
		d.publishFinished(ctx, c)
	}

	if err := d.writeBack(ctx, c); err != nil {
		// keep the mutation for the next tick; the send is never repeated
		d.unsaved = c
		log.Printf("Dispatcher: cannot persist campaign %s, will retry: %v", c.ID, err)
	}

	return d.sendDelay(c)
}

// eligible returns the first campaign that is in progress or scheduled and
// due. First in list order wins; later eligible campaigns wait.
func (d *Dispatcher) eligible(campaigns []*model.Campaign) *model.Campaign {
	now := d.Now()
	for _, c := range campaigns {
		switch c.Status {
		case model.StatusInProgress:
			return c
		case model.StatusScheduled:
			if c.ScheduledAt == nil || !c.ScheduledAt.After(now) {
				return c
			}
		}
	}
	return nil
}

// resolveSender returns the account for the next send. Under rotation a new
// account is picked from the active pool whenever none is held or the batch
// is used up. Nothing is mutated when the pool is empty.
func (d *Dispatcher) resolveSender(ctx context.Context, c *model.Campaign) (string, error) {
	if !c.Rotating() {
		return c.SenderMode, nil
	}

	accounts, err := d.Gateway.ListActiveAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", ErrNoActiveAccounts
	}

	if c.CurrentSender == "" || c.SentSinceRotation >= c.RotationBatchSize {
		pick := accounts[d.Rand.Intn(len(accounts))]
		c.CurrentSender = pick.ID
		c.SentSinceRotation = 0
		log.Printf("Dispatcher: campaign %s now sending via account %s", c.ID, pick.ID)
	}
	return c.CurrentSender, nil
}

func (d *Dispatcher) applyFinalStatus(c *model.Campaign) {
	if c.FailedCount == 0 {
		c.Status = model.StatusSent
	} else {
		c.Status = model.StatusPartial
	}
	log.Printf("Dispatcher: campaign %s finished with status %s (%d sent, %d failed)",
		c.ID, c.Status, c.SentCount, c.FailedCount)
}

func (d *Dispatcher) finalize(ctx context.Context, c *model.Campaign) {
	d.applyFinalStatus(c)
	d.publishFinished(ctx, c)
	if err := d.writeBack(ctx, c); err != nil {
		d.unsaved = c
		log.Printf("Dispatcher: cannot persist final status of campaign %s: %v", c.ID, err)
	}
}

// writeBack persists one mutated campaign through the guard's serialized
// load-merge-save: the snapshot is re-read under the lock so records created
// or deleted by the admission API in the meantime are preserved. A campaign
// deleted mid-tick wins over the dispatcher's mutation, which is silently
// discarded.
func (d *Dispatcher) writeBack(ctx context.Context, c *model.Campaign) error {
	return d.Store.Update(ctx, func(campaigns []*model.Campaign) ([]*model.Campaign, bool) {
		for i := range campaigns {
			if campaigns[i].ID == c.ID {
				campaigns[i] = c
				return campaigns, true
			}
		}
		log.Printf("Dispatcher: campaign %s was deleted mid-flight, dropping update", c.ID)
		return campaigns, false
	})
}

// sendDelay draws the wait before the next tick uniformly from the
// campaign's inclusive delay window.
func (d *Dispatcher) sendDelay(c *model.Campaign) time.Duration {
	min := c.MinDelaySeconds
	max := c.MaxDelaySeconds
	if max < min {
		max = min
	}
	return time.Duration(min+d.Rand.Intn(max-min+1)) * time.Second
}

func (d *Dispatcher) publish(ctx context.Context, ev events.Event) {
	if err := d.Events.Publish(ctx, ev); err != nil {
		log.Printf("Dispatcher: cannot publish %s event: %v", ev.Type, err)
	}
}

func (d *Dispatcher) publishFinished(ctx context.Context, c *model.Campaign) {
	d.publish(ctx, events.Event{
		Type:         events.CampaignFinished,
		CampaignID:   c.ID,
		CampaignName: c.Name,
		Status:       string(c.Status),
		At:           d.Now(),
	})
}
