package storage

import (
	"math"
	"testing"
	"time"

	"giveaway/internal/models"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func sampleEvent() *models.Event {
	token := "usdt.token"
	now := models.TimestampFromTime(time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC))
	return &models.Event{
		OwnerAccountID:                "zavodil.test",
		Status:                        models.EventStatusPending,
		Rewards:                       []models.Balance{models.BalanceFromInt64(300), models.BalanceFromInt64(200)},
		RewardsTokenID:                &token,
		Participants:                  []string{"grant.test", "place.test"},
		AllowDuplicateParticipants:    true,
		AddParticipantsStartTimestamp: now - 100,
		AddParticipantsEndTimestamp:   now + 100,
		EventTimestamp:                now + 100,
		Title:                         "Test",
		Description:                   "Test text",
		Escrow:                        models.BalanceFromInt64(505),
	}
}

func TestStore_EventRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.PutEvent(0, sampleEvent()); err != nil {
				t.Fatalf("PutEvent: %v", err)
			}

			got, ok, err := store.GetEvent(0)
			if err != nil || !ok {
				t.Fatalf("GetEvent: ok=%v err=%v", ok, err)
			}
			want := sampleEvent()
			if got.OwnerAccountID != want.OwnerAccountID || got.Status != want.Status ||
				got.Title != want.Title || got.Description != want.Description {
				t.Errorf("event fields mangled: got %+v", got)
			}
			if len(got.Rewards) != 2 || got.Rewards[0].Cmp(want.Rewards[0]) != 0 {
				t.Errorf("rewards mangled: got %+v", got.Rewards)
			}
			if got.RewardsTokenID == nil || *got.RewardsTokenID != *want.RewardsTokenID {
				t.Errorf("token id mangled: got %v", got.RewardsTokenID)
			}
			if !got.AllowDuplicateParticipants {
				t.Error("allow-duplicates flag lost")
			}
			if got.EventTimestamp != want.EventTimestamp {
				t.Errorf("event timestamp mangled: got %d, want %d", got.EventTimestamp, want.EventTimestamp)
			}
			if got.FinalizedTimestamp != nil {
				t.Errorf("unfinalized event came back with timestamp %d", *got.FinalizedTimestamp)
			}
			if got.Escrow.Cmp(want.Escrow) != 0 {
				t.Errorf("escrow mangled: got %s, want %s", got.Escrow, want.Escrow)
			}
		})
	}
}

func TestStore_EventUpsert(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ev := sampleEvent()
			if err := store.PutEvent(0, ev); err != nil {
				t.Fatalf("PutEvent: %v", err)
			}

			finalized := ev.EventTimestamp + 1
			ev.Status = models.EventStatusCalculated
			ev.FinalizedTimestamp = &finalized
			ev.DrawSeed = "0a0b"
			ev.Closed = true
			if err := store.PutEvent(0, ev); err != nil {
				t.Fatalf("PutEvent update: %v", err)
			}

			got, ok, err := store.GetEvent(0)
			if err != nil || !ok {
				t.Fatalf("GetEvent: ok=%v err=%v", ok, err)
			}
			if got.Status != models.EventStatusCalculated {
				t.Errorf("status = %s, want Calculated", got.Status)
			}
			if got.FinalizedTimestamp == nil || *got.FinalizedTimestamp != finalized {
				t.Errorf("finalized timestamp = %v, want %d", got.FinalizedTimestamp, finalized)
			}
			if got.DrawSeed != "0a0b" {
				t.Errorf("draw seed = %q", got.DrawSeed)
			}
			if !got.Closed {
				t.Error("closed flag lost")
			}

			if count, err := store.EventCount(); err != nil || count != 1 {
				t.Errorf("EventCount after upsert = %d (err %v), want 1", count, err)
			}
		})
	}
}

func TestStore_GetEventMissing(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.GetEvent(99)
			if err != nil {
				t.Fatalf("GetEvent: %v", err)
			}
			if ok {
				t.Error("missing event reported as present")
			}
		})
	}
}

func TestStore_ListEvents(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for id := uint64(0); id < 5; id++ {
				ev := sampleEvent()
				ev.Title = string(rune('A' + id))
				if err := store.PutEvent(id, ev); err != nil {
					t.Fatalf("PutEvent(%d): %v", id, err)
				}
			}

			page, err := store.ListEvents(1, 2)
			if err != nil {
				t.Fatalf("ListEvents: %v", err)
			}
			if len(page) != 2 || page[0].ID != 1 || page[1].ID != 2 {
				t.Fatalf("ListEvents(1,2) = %+v, want ids 1,2", page)
			}
			if page[0].Event.Title != "B" {
				t.Errorf("event 1 title = %q, want B", page[0].Event.Title)
			}

			tail, err := store.ListEvents(4, 10)
			if err != nil {
				t.Fatalf("ListEvents: %v", err)
			}
			if len(tail) != 1 || tail[0].ID != 4 {
				t.Errorf("ListEvents(4,10) = %+v, want only id 4", tail)
			}

			empty, err := store.ListEvents(50, 10)
			if err != nil {
				t.Fatalf("ListEvents: %v", err)
			}
			if len(empty) != 0 {
				t.Errorf("ListEvents past the end returned %d events", len(empty))
			}

			// A huge limit must not wrap the index arithmetic; the page
			// runs to the end of the collection.
			rest, err := store.ListEvents(1, math.MaxUint64)
			if err != nil {
				t.Fatalf("ListEvents: %v", err)
			}
			if len(rest) != 4 || rest[0].ID != 1 || rest[3].ID != 4 {
				t.Errorf("ListEvents(1, MaxUint64) = %d events, want ids 1..4", len(rest))
			}
			if far, err := store.ListEvents(math.MaxUint64, math.MaxUint64); err != nil || len(far) != 0 {
				t.Errorf("ListEvents at MaxUint64 = %d events (err %v), want none", len(far), err)
			}
		})
	}
}

func TestStore_Payouts(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			token := "usdt.token"
			slots := []*models.Payout{
				{AccountID: "grant.test", Amount: models.BalanceFromInt64(300), Status: models.PayoutStatusPending},
				{AccountID: "place.test", Amount: models.BalanceFromInt64(200), TokenID: &token, Status: models.PayoutStatusPending},
			}
			for idx, p := range slots {
				if err := store.PutPayout(7, uint64(idx), p); err != nil {
					t.Fatalf("PutPayout(%d): %v", idx, err)
				}
			}

			if count, err := store.PayoutCount(7); err != nil || count != 2 {
				t.Fatalf("PayoutCount = %d (err %v), want 2", count, err)
			}
			if count, err := store.PayoutCount(8); err != nil || count != 0 {
				t.Fatalf("PayoutCount for other event = %d (err %v), want 0", count, err)
			}

			got, ok, err := store.GetPayout(7, 1)
			if err != nil || !ok {
				t.Fatalf("GetPayout: ok=%v err=%v", ok, err)
			}
			if got.AccountID != "place.test" || got.Amount.Cmp(models.BalanceFromInt64(200)) != 0 {
				t.Errorf("payout mangled: %+v", got)
			}
			if got.TokenID == nil || *got.TokenID != token {
				t.Errorf("payout token mangled: %v", got.TokenID)
			}

			// Marking a slot complete must not bump the count.
			got.Status = models.PayoutStatusComplete
			if err := store.PutPayout(7, 1, got); err != nil {
				t.Fatalf("PutPayout update: %v", err)
			}
			if count, err := store.PayoutCount(7); err != nil || count != 2 {
				t.Fatalf("PayoutCount after update = %d (err %v), want 2", count, err)
			}

			page, err := store.ListPayouts(7, 0, 10)
			if err != nil {
				t.Fatalf("ListPayouts: %v", err)
			}
			if len(page) != 2 || page[0].Index != 0 || page[1].Index != 1 {
				t.Fatalf("ListPayouts = %+v, want indexes 0,1", page)
			}
			if page[1].Payout.Status != models.PayoutStatusComplete {
				t.Errorf("updated status lost: %s", page[1].Payout.Status)
			}

			if _, ok, err := store.GetPayout(7, 9); err != nil || ok {
				t.Errorf("missing payout: ok=%v err=%v", ok, err)
			}

			all, err := store.ListPayouts(7, 0, math.MaxUint64)
			if err != nil {
				t.Fatalf("ListPayouts: %v", err)
			}
			if len(all) != 2 {
				t.Errorf("ListPayouts(0, MaxUint64) = %d payouts, want 2", len(all))
			}

			if err := store.DeletePayouts(7); err != nil {
				t.Fatalf("DeletePayouts: %v", err)
			}
			if count, err := store.PayoutCount(7); err != nil || count != 0 {
				t.Errorf("PayoutCount after delete = %d (err %v), want 0", count, err)
			}
			if _, ok, err := store.GetPayout(7, 0); err != nil || ok {
				t.Errorf("payout survived delete: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStore_NoAliasing(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ev := sampleEvent()
			if err := store.PutEvent(0, ev); err != nil {
				t.Fatalf("PutEvent: %v", err)
			}
			ev.Participants[0] = "mutated.test"

			got, _, err := store.GetEvent(0)
			if err != nil {
				t.Fatalf("GetEvent: %v", err)
			}
			if got.Participants[0] != "grant.test" {
				t.Error("stored event aliases the caller's slices")
			}
			got.Participants[0] = "mutated.test"

			again, _, err := store.GetEvent(0)
			if err != nil {
				t.Fatalf("GetEvent: %v", err)
			}
			if again.Participants[0] != "grant.test" {
				t.Error("returned event aliases store internals")
			}
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/giveaway.db"
	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := store.PutEvent(0, sampleEvent()); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if count, err := reopened.EventCount(); err != nil || count != 1 {
		t.Fatalf("EventCount after reopen = %d (err %v), want 1", count, err)
	}
	got, ok, err := reopened.GetEvent(0)
	if err != nil || !ok {
		t.Fatalf("GetEvent after reopen: ok=%v err=%v", ok, err)
	}
	if got.OwnerAccountID != "zavodil.test" {
		t.Errorf("owner = %q after reopen", got.OwnerAccountID)
	}
}
