package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/slackapi/slackapitest"
	"github.com/crestline/triagebot/pkg/store"
)

func seededStore(t *testing.T, tenants ...string) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	for _, id := range tenants {
		if err := s.Upsert(context.Background(), store.Installation{
			TenantID:        id,
			BotToken:        "xoxb-" + id,
			InstallerUserID: "U-" + id,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(seededStore(t), func(context.Context, store.Installation) error { return nil }, "not a cron")
	if err := s.Start(context.Background()); err == nil {
		t.Error("invalid schedule accepted")
	}
}

func TestTriggerNowReachesEveryTenant(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	sender := func(_ context.Context, inst store.Installation) error {
		mu.Lock()
		defer mu.Unlock()
		seen[inst.TenantID]++
		return nil
	}

	s := NewScheduler(seededStore(t, "T1", "T2", "T3"), sender, "0 9 * * 1-5")
	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("tenants reached: %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("tenant %s reminded %d times", id, n)
		}
	}
}

func TestOneFailingTenantDoesNotBlockOthers(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	sender := func(_ context.Context, inst store.Installation) error {
		if inst.TenantID == "T2" {
			return errors.New("channel closed")
		}
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, inst.TenantID)
		return nil
	}

	s := NewScheduler(seededStore(t, "T1", "T2", "T3"), sender, "* * * * *")
	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 {
		t.Errorf("delivered to %v, want the two healthy tenants", delivered)
	}
}

func TestInstallerDMUsesWorkspaceToken(t *testing.T) {
	var mu sync.Mutex
	fakes := map[string]*slackapitest.Fake{}
	factory := func(token string) slackapi.API {
		mu.Lock()
		defer mu.Unlock()
		f, ok := fakes[token]
		if !ok {
			f = &slackapitest.Fake{}
			fakes[token] = f
		}
		return f
	}

	s := NewScheduler(seededStore(t, "T1", "T2"), InstallerDM(factory, "Time for triage."), "0 9 * * 1-5")
	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fakes) != 2 {
		t.Fatalf("tokens used: %d", len(fakes))
	}
	for _, id := range []string{"T1", "T2"} {
		f, ok := fakes["xoxb-"+id]
		if !ok {
			t.Fatalf("no client built with %s's token", id)
		}
		posted := f.Posted()
		if len(posted) != 1 {
			t.Fatalf("posts for %s: %d", id, len(posted))
		}
		if posted[0].Channel != "U-"+id {
			t.Errorf("DM went to %s", posted[0].Channel)
		}
		if !strings.Contains(posted[0].Text, "Time for triage.") {
			t.Errorf("DM text: %q", posted[0].Text)
		}
	}
}

func TestInstallerDMWithoutInstaller(t *testing.T) {
	fake := &slackapitest.Fake{}
	sender := InstallerDM(func(string) slackapi.API { return fake }, "hi")

	err := sender(context.Background(), store.Installation{TenantID: "T9", BotToken: "xoxb-9"})
	if err == nil {
		t.Fatal("missing installer should be an error")
	}
	if len(fake.Posted()) != 0 {
		t.Error("nothing should be posted without an installer")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewScheduler(seededStore(t), func(context.Context, store.Installation) error { return nil }, "* * * * *")
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	s.Stop()
	s.Stop()
}

func TestTriggerNowStoreFailure(t *testing.T) {
	s := NewScheduler(&brokenStore{}, func(context.Context, store.Installation) error { return nil }, "* * * * *")
	if err := s.TriggerNow(context.Background()); err == nil {
		t.Error("store failure swallowed")
	}
}

type brokenStore struct{}

func (b *brokenStore) Upsert(context.Context, store.Installation) error { return errors.New("down") }
func (b *brokenStore) Lookup(context.Context, string) (*store.Installation, error) {
	return nil, errors.New("down")
}
func (b *brokenStore) List(context.Context) ([]store.Installation, error) {
	return nil, errors.New("down")
}
func (b *brokenStore) Close() {}
