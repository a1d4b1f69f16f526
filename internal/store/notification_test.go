package store

import (
	"testing"

	"github.com/chorequest/chorequest/internal/database"
	"github.com/chorequest/chorequest/internal/model"
)

func setupNotificationTestDB(t *testing.T) (*NotificationStore, *PlayerStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewNotificationStore(db), NewPlayerStore(db)
}

func levelUp(playerID int64, name string, level int) model.Notification {
	return model.Notification{
		Type:       model.NotificationLevelUp,
		PlayerID:   playerID,
		PlayerName: name,
		Level:      &level,
	}
}

func TestNotificationInsertAndGet(t *testing.T) {
	ns, ps := setupNotificationTestDB(t)
	alice, _ := ps.Create("Alice")

	n, err := ns.Insert(levelUp(alice.ID, alice.Name, 2))
	if err != nil {
		t.Fatalf("insert notification: %v", err)
	}
	if n.ID == 0 {
		t.Error("expected assigned id")
	}

	got, err := ns.GetByID(n.ID)
	if err != nil {
		t.Fatalf("get notification: %v", err)
	}
	if got == nil {
		t.Fatal("expected notification")
	}
	if got.Type != model.NotificationLevelUp || got.PlayerID != alice.ID {
		t.Errorf("unexpected notification: %+v", got)
	}
	if got.Level == nil || *got.Level != 2 {
		t.Errorf("level = %v, want 2", got.Level)
	}
	if len(got.SeenBy) != 0 {
		t.Errorf("seen by = %v, want empty", got.SeenBy)
	}
}

func TestListUnseenByPlayer(t *testing.T) {
	ns, ps := setupNotificationTestDB(t)
	alice, _ := ps.Create("Alice")
	bob, _ := ps.Create("Bob")

	first, _ := ns.Insert(levelUp(alice.ID, alice.Name, 2))
	second, _ := ns.Insert(levelUp(alice.ID, alice.Name, 3))

	if err := ns.MarkAllSeen(bob.ID); err != nil {
		t.Fatalf("mark all seen: %v", err)
	}

	// Bob has seen everything
	unseen, err := ns.ListUnseenByPlayer(bob.ID)
	if err != nil {
		t.Fatalf("list unseen: %v", err)
	}
	if len(unseen) != 0 {
		t.Errorf("expected 0 unseen for bob, got %d", len(unseen))
	}

	// Alice has not, creation order preserved
	unseen, err = ns.ListUnseenByPlayer(alice.ID)
	if err != nil {
		t.Fatalf("list unseen: %v", err)
	}
	if len(unseen) != 2 {
		t.Fatalf("expected 2 unseen for alice, got %d", len(unseen))
	}
	if unseen[0].ID != first.ID || unseen[1].ID != second.ID {
		t.Errorf("order = [%d %d], want [%d %d]", unseen[0].ID, unseen[1].ID, first.ID, second.ID)
	}
}

func TestMarkAllSeenIdempotent(t *testing.T) {
	ns, ps := setupNotificationTestDB(t)
	alice, _ := ps.Create("Alice")

	n, _ := ns.Insert(levelUp(alice.ID, alice.Name, 2))

	if err := ns.MarkAllSeen(alice.ID); err != nil {
		t.Fatalf("mark all seen: %v", err)
	}
	if err := ns.MarkAllSeen(alice.ID); err != nil {
		t.Fatalf("repeat mark all seen: %v", err)
	}

	got, _ := ns.GetByID(n.ID)
	if len(got.SeenBy) != 1 || got.SeenBy[0] != alice.ID {
		t.Errorf("seen by = %v, want [%d]", got.SeenBy, alice.ID)
	}
}

func TestDeleteFullySeen(t *testing.T) {
	ns, ps := setupNotificationTestDB(t)
	alice, _ := ps.Create("Alice")
	bob, _ := ps.Create("Bob")

	n, _ := ns.Insert(levelUp(alice.ID, alice.Name, 2))

	if err := ns.MarkAllSeen(alice.ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	roster := []int64{alice.ID, bob.ID}
	if err := ns.DeleteFullySeen(roster); err != nil {
		t.Fatalf("delete fully seen: %v", err)
	}

	// Bob hasn't seen it, so it survives
	got, _ := ns.GetByID(n.ID)
	if got == nil {
		t.Fatal("notification deleted before full roster saw it")
	}

	if err := ns.MarkAllSeen(bob.ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if err := ns.DeleteFullySeen(roster); err != nil {
		t.Fatalf("delete fully seen: %v", err)
	}
	got, _ = ns.GetByID(n.ID)
	if got != nil {
		t.Error("expected notification deleted once full roster saw it")
	}
}

func TestDeleteFullySeenEmptyRoster(t *testing.T) {
	ns, ps := setupNotificationTestDB(t)
	alice, _ := ps.Create("Alice")

	n, _ := ns.Insert(levelUp(alice.ID, alice.Name, 2))

	// With no players left, every notification is fully seen by definition
	if err := ns.DeleteFullySeen(nil); err != nil {
		t.Fatalf("delete fully seen: %v", err)
	}
	got, _ := ns.GetByID(n.ID)
	if got != nil {
		t.Error("expected notification deleted with empty roster")
	}
}
