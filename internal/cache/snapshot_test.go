package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type entry struct {
	ID  string `json:"id"`
	Pos int    `json:"pos"`
}

func newTestSnapshots(t *testing.T, ttl time.Duration) (*Snapshots, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshots(client, ttl), srv
}

func TestSnapshotRoundTrip(t *testing.T) {
	snaps, _ := newTestSnapshots(t, time.Hour)
	ctx := context.Background()

	var lookups []bool
	snaps.OnLookup = func(_ string, hit bool) { lookups = append(lookups, hit) }

	var got []entry
	if found, err := snaps.Load(ctx, "plans", &got); err != nil || found {
		t.Fatalf("expected miss on empty cache, found=%v err=%v", found, err)
	}

	if err := snaps.Save(ctx, "plans", []entry{{ID: "a", Pos: 1}, {ID: "b", Pos: 2}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	found, err := snaps.Load(ctx, "plans", &got)
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if len(lookups) != 2 || lookups[0] || !lookups[1] {
		t.Fatalf("unexpected lookup notifications: %v", lookups)
	}
}

func TestSnapshotExpires(t *testing.T) {
	snaps, srv := newTestSnapshots(t, time.Minute)
	ctx := context.Background()

	if err := snaps.Save(ctx, "services", []entry{{ID: "x"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	var got []entry
	if found, _ := snaps.Load(ctx, "services", &got); found {
		t.Fatal("expected snapshot to expire")
	}
}

func TestUnreadableSnapshotIsDropped(t *testing.T) {
	snaps, srv := newTestSnapshots(t, time.Hour)
	if err := srv.Set("snapshot:portfolio", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got []entry
	found, err := snaps.Load(context.Background(), "portfolio", &got)
	if err != nil || found {
		t.Fatalf("expected unreadable snapshot to be treated as a miss, found=%v err=%v", found, err)
	}
	if srv.Exists("snapshot:portfolio") {
		t.Fatal("expected unreadable snapshot to be deleted")
	}
}
