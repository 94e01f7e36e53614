package store

import (
	"strings"
	"testing"
)

func TestAppendEvent(t *testing.T) {
	db := testDB(t)

	err := db.Update(func(tx *Tx) error {
		return tx.AppendEvent(Event{OpID: "op-1", Kind: EventMint, Epoch: 1, To: alice.Hex(), Amount: 100})
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	events, err := db.GetOperationEvents("op-1")
	if err != nil {
		t.Fatalf("GetOperationEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != EventMint || events[0].Amount != 100 || events[0].To != alice.Hex() {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].From != "" {
		t.Errorf("From = %q, want empty", events[0].From)
	}
}

func TestAppendEventTruncatesDetail(t *testing.T) {
	db := testDB(t)

	big := strings.Repeat("x", 10*1024)
	db.Update(func(tx *Tx) error {
		return tx.AppendEvent(Event{OpID: "op-1", Kind: EventBurn, Detail: big})
	})

	events, _ := db.GetOperationEvents("op-1")
	if len(events[0].Detail) != maxDetailSize {
		t.Errorf("Detail length = %d, want %d", len(events[0].Detail), maxDetailSize)
	}
}

func TestGetRecentEvents(t *testing.T) {
	db := testDB(t)

	db.Update(func(tx *Tx) error {
		tx.AppendEvent(Event{OpID: "op-1", Kind: EventMint})
		tx.AppendEvent(Event{OpID: "op-2", Kind: EventBurn})
		return tx.AppendEvent(Event{OpID: "op-3", Kind: EventTransfer})
	})

	events, err := db.GetRecentEvents(2)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].OpID != "op-3" {
		t.Errorf("newest = %q, want op-3", events[0].OpID)
	}

	count, _ := db.CountEvents(EventMint)
	if count != 1 {
		t.Errorf("CountEvents(mint) = %d, want 1", count)
	}
}
