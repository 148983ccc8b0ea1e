package broadcast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"broadcast-playout/internal/store"
)

func TestRepository_repairsInvalidCollection(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fs.Path(store.Channels), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := newChannelRepository(fs, store.NewLocalLocker())
	channels, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(channels) != ChannelCount {
		t.Errorf("got %d channels want %d after repair", len(channels), ChannelCount)
	}
}

func TestRepository_ensureKeepsValidData(t *testing.T) {
	s := store.NewInMemoryStore()
	repo := newChannelRepository(s, store.NewLocalLocker())
	ctx := context.Background()

	if err := repo.Upsert(ctx, Channel{ID: 1, Name: "Renamed"}); err != nil {
		t.Fatal(err)
	}
	repaired, err := repo.Ensure(ctx)
	if err != nil || repaired {
		t.Fatalf("Ensure on valid data: repaired=%v err=%v", repaired, err)
	}
	ch, ok, _ := repo.Get(ctx, "1")
	if !ok || ch.Name != "Renamed" {
		t.Errorf("valid data was reset: %+v", ch)
	}
}

func TestRepository_concurrentUpserts(t *testing.T) {
	repo := newScheduleRepository(store.NewInMemoryStore(), store.NewLocalLocker())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := repo.Upsert(ctx, ScheduleEntry{ID: fmt.Sprintf("e%d", i), ChannelID: 1}); err != nil {
				t.Errorf("Upsert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != n {
		t.Errorf("lost updates: got %d entries want %d", len(items), n)
	}
}

func TestRepository_mutateErrorWritesNothing(t *testing.T) {
	repo := newMediaRepository(store.NewInMemoryStore(), store.NewLocalLocker())
	ctx := context.Background()
	if err := repo.Upsert(ctx, MediaAsset{ID: "m1", Title: "A"}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := repo.Mutate(ctx, func(items []MediaAsset) ([]MediaAsset, error) {
		items[0].Title = "changed"
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v want boom", err)
	}
	m, _, _ := repo.Get(ctx, "m1")
	if m.Title != "A" {
		t.Errorf("aborted mutation was persisted: %+v", m)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := newMediaRepository(store.NewInMemoryStore(), store.NewLocalLocker())
	ctx := context.Background()
	_ = repo.Upsert(ctx, MediaAsset{ID: "m1"})
	_ = repo.Upsert(ctx, MediaAsset{ID: "m2"})

	removed, ok, err := repo.Delete(ctx, "m1")
	if err != nil || !ok || removed.ID != "m1" {
		t.Fatalf("Delete: %+v %v %v", removed, ok, err)
	}
	if _, ok, err := repo.Delete(ctx, "m1"); ok || err != nil {
		t.Errorf("second Delete: ok=%v err=%v", ok, err)
	}
	items, _ := repo.List(ctx)
	if len(items) != 1 || items[0].ID != "m2" {
		t.Errorf("remaining: %+v", items)
	}
}

func TestRepository_repairWaitsForLock(t *testing.T) {
	locker := store.NewLocalLocker()
	repo := newChannelRepository(store.NewInMemoryStore(), locker)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, store.Channels)
	if err != nil {
		t.Fatal(err)
	}
	type result struct {
		items []Channel
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, err := repo.List(ctx)
		done <- result{items, err}
	}()

	select {
	case <-done:
		t.Fatal("repair ran while another writer held the collection lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()

	select {
	case r := <-done:
		if r.err != nil || len(r.items) != ChannelCount {
			t.Errorf("List after unlock: %d items, %v", len(r.items), r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("List did not finish after the lock was released")
	}
}

func TestRepository_mutateRepairsMissingCollection(t *testing.T) {
	repo := newScheduleRepository(store.NewInMemoryStore(), store.NewLocalLocker())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := repo.Upsert(ctx, ScheduleEntry{ID: "s1", ChannelID: 1, MediaID: "m1"}); err != nil {
		t.Fatalf("Upsert on missing collection: %v", err)
	}
	items, err := repo.List(ctx)
	if err != nil || len(items) != 1 {
		t.Errorf("got %d items, %v want 1", len(items), err)
	}
}
