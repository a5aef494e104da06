package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wabroadcast/backend/internal/dispatch"
	appErrors "github.com/wabroadcast/backend/internal/errors"
	"github.com/wabroadcast/backend/internal/gateway"
	"github.com/wabroadcast/backend/internal/model"
	"github.com/wabroadcast/backend/internal/service"
	"github.com/wabroadcast/backend/internal/store"
)

func validInput() service.CreateCampaignInput {
	return service.CreateCampaignInput{
		Name:       "Promo",
		Message:    "Hi",
		Recipients: []string{"111", "222"},
		SenderMode: "acctA",
	}
}

func TestCreateCampaignAssignsDefaults(t *testing.T) {
	svc := &service.CampaignService{Store: store.NewGuard(store.NewMemoryStore())}

	c, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if c.ID == "" {
		t.Errorf("campaign got no id")
	}
	if c.Status != model.StatusInProgress {
		t.Errorf("unscheduled campaign should start in_progress, got %s", c.Status)
	}
	if c.RotationBatchSize != 1 {
		t.Errorf("rotation batch size should default to 1, got %d", c.RotationBatchSize)
	}
	if len(c.Recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(c.Recipients))
	}
	for i, r := range c.Recipients {
		if r.DeliveryStatus != model.DeliveryPending {
			t.Errorf("recipient %d should start pending, got %s", i, r.DeliveryStatus)
		}
	}

	listed, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != c.ID {
		t.Errorf("created campaign not persisted")
	}
}

func TestCreateCampaignScheduledInFuture(t *testing.T) {
	svc := &service.CampaignService{Store: store.NewGuard(store.NewMemoryStore())}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	future := now.Add(time.Hour)
	in := validInput()
	in.ScheduledAt = &future

	c, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != model.StatusScheduled {
		t.Errorf("future-scheduled campaign should be scheduled, got %s", c.Status)
	}

	// a schedule in the past is due immediately
	past := now.Add(-time.Hour)
	in = validInput()
	in.ScheduledAt = &past
	c, err = svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != model.StatusInProgress {
		t.Errorf("past-scheduled campaign should start in_progress, got %s", c.Status)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	svc := &service.CampaignService{Store: store.NewGuard(store.NewMemoryStore())}

	cases := []struct {
		name   string
		mutate func(*service.CreateCampaignInput)
	}{
		{"empty name", func(in *service.CreateCampaignInput) { in.Name = " " }},
		{"empty message", func(in *service.CreateCampaignInput) { in.Message = "" }},
		{"empty sender mode", func(in *service.CreateCampaignInput) { in.SenderMode = "" }},
		{"no recipients", func(in *service.CreateCampaignInput) { in.Recipients = nil }},
		{"blank recipient", func(in *service.CreateCampaignInput) { in.Recipients = []string{"111", " "} }},
		{"negative delay", func(in *service.CreateCampaignInput) { in.MinDelaySeconds = -1 }},
		{"min above max", func(in *service.CreateCampaignInput) {
			in.MinDelaySeconds = 10
			in.MaxDelaySeconds = 5
		}},
		{"negative batch", func(in *service.CreateCampaignInput) { in.RotationBatchSize = -2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			var ve *appErrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	listed, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("rejected campaigns were persisted: %d", len(listed))
	}
}

func TestDeleteCampaignIsIdempotent(t *testing.T) {
	svc := &service.CampaignService{Store: store.NewGuard(store.NewMemoryStore())}

	c, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if err := svc.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("deleting unknown id should be a no-op, got %v", err)
	}

	listed, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected empty campaign list, got %d", len(listed))
	}
}

func TestGetCampaignStats(t *testing.T) {
	st := store.NewMemoryStore()
	svc := &service.CampaignService{Store: store.NewGuard(st)}

	c, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// mark one recipient sent, as the dispatcher would
	campaigns, _ := st.Load(context.Background())
	campaigns[0].Recipients[0].DeliveryStatus = model.DeliverySent
	campaigns[0].Cursor = 1
	campaigns[0].SentCount = 1
	if err := st.Save(context.Background(), campaigns); err != nil {
		t.Fatalf("save: %v", err)
	}

	details, err := svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if details.Stats["total"] != 2 || details.Stats["sent"] != 1 || details.Stats["pending"] != 1 {
		t.Errorf("unexpected stats: %v", details.Stats)
	}

	_, err = svc.Get(context.Background(), "missing")
	var nf *appErrors.ErrCampaignNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

type countingGateway struct {
	mu    sync.Mutex
	sends map[string]int
}

func (g *countingGateway) ListActiveAccounts(ctx context.Context) ([]gateway.Account, error) {
	return []gateway.Account{{ID: "acctA", Name: "A", Connected: true}}, nil
}

func (g *countingGateway) SendText(ctx context.Context, accountID, recipient, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sends == nil {
		g.sends = map[string]int{}
	}
	g.sends[recipient]++
	return nil
}

func (g *countingGateway) count(recipient string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sends[recipient]
}

// Admissions landing while the dispatcher is mid-campaign must not clobber
// its progress. The service and the dispatcher share one Guard, so a create
// that raced a delivery can never save a snapshot where that delivery is
// still pending, which would make the dispatcher send it again.
func TestAdmissionDuringDispatchNeverRevertsDeliveries(t *testing.T) {
	snap := store.NewGuard(store.NewMemoryStore())
	gw := &countingGateway{}
	svc := &service.CampaignService{Store: snap, Gateway: gw}

	in := validInput()
	in.Recipients = []string{"111", "222", "333", "444", "555"}
	first, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		future := time.Now().Add(24 * time.Hour)
		for i := 0; i < 20; i++ {
			extra := validInput()
			extra.ScheduledAt = &future
			if _, err := svc.Create(context.Background(), extra); err != nil {
				t.Errorf("concurrent create: %v", err)
				return
			}
		}
	}()

	d := dispatch.New(snap, gw, nil, time.Second)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		d.Tick(ctx)
		campaigns, err := snap.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		finished := false
		for _, c := range campaigns {
			if c.ID == first.ID && c.Status != model.StatusInProgress {
				finished = true
			}
		}
		if finished {
			break
		}
	}
	<-done

	for _, r := range in.Recipients {
		if n := gw.count(r); n != 1 {
			t.Errorf("recipient %s sent %d times, want exactly 1", r, n)
		}
	}

	campaigns, err := snap.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(campaigns) != 21 {
		t.Errorf("expected 21 campaigns, got %d", len(campaigns))
	}
	for _, c := range campaigns {
		if c.ID != first.ID {
			continue
		}
		if c.Status != model.StatusSent {
			t.Errorf("first campaign status = %s, want %s", c.Status, model.StatusSent)
		}
		if c.SentCount != 5 {
			t.Errorf("first campaign sent count = %d, want 5", c.SentCount)
		}
	}
}
