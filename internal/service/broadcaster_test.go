package service

import (
	"partyquest/internal/model"
	"testing"
	"time"
)

func TestDispatchKeepsOrderAndDelays(t *testing.T) {
	rec := &recorder{}
	start := ToRoom("s1", model.EventAllPlayersReady, nil)
	start.Delay = 30 * time.Millisecond

	began := time.Now()
	Dispatch(rec, []Delivery{
		ToRoom("s1", model.EventCharacterSelectionUpdate, nil),
		ToRoom("s1", model.EventSelectionUpdate, nil),
		start,
		Notify("c1", model.NotifyInfo, "hello"),
	})

	got := rec.events()
	want := []string{model.EventCharacterSelectionUpdate, model.EventSelectionUpdate, model.EventShowNotification}
	if !equalStrings(got, want) {
		t.Fatalf("immediate sends = %v, want %v", got, want)
	}

	deadline := time.After(2 * time.Second)
	for len(rec.events()) < 4 {
		select {
		case <-deadline:
			t.Fatal("delayed delivery never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	rec.mu.Lock()
	last := rec.sent[3]
	rec.mu.Unlock()
	if last.Event != model.EventAllPlayersReady || last.Target != "s1" {
		t.Errorf("unexpected delayed send %+v", last)
	}
	if last.At.Sub(began) < 30*time.Millisecond {
		t.Errorf("delayed delivery fired after %v", last.At.Sub(began))
	}
}

func TestNotifyTargetsOneConnection(t *testing.T) {
	d := Notify("c9", model.NotifyWarning, "careful")
	if d.Audience != AudienceConnection || d.ConnID != "c9" || d.SessionID != "" {
		t.Fatalf("unexpected delivery %+v", d)
	}
	n, ok := d.Payload.(model.Notification)
	if !ok || n.Kind != model.NotifyWarning || n.Message != "careful" {
		t.Errorf("unexpected payload %+v", d.Payload)
	}
}
