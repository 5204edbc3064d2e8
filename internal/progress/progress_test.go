package progress

import "testing"

func TestReporter(t *testing.T) {
	ch := make(chan Event, 10)
	r := NewReporter(ch)

	r.Start(StageReconciling, 4, "starting")
	r.Increment("one")
	r.Increment("two")
	r.Complete("done")

	events := make([]Event, 0, 4)
	for len(ch) > 0 {
		events = append(events, <-ch)
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Stage != StageReconciling || events[0].Total != 4 || events[0].Current != 0 {
		t.Errorf("unexpected start event: %+v", events[0])
	}
	if events[2].Current != 2 || events[2].Percentage != 50.0 {
		t.Errorf("expected 2/4 at 50%%, got %d at %.1f", events[2].Current, events[2].Percentage)
	}
	if events[3].Stage != StageComplete || events[3].Percentage != 100.0 {
		t.Errorf("unexpected complete event: %+v", events[3])
	}
}

func TestReporterDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	r := NewReporter(ch)

	r.Start(StageScanning, 0, "a")
	r.Increment("b") // dropped, channel full

	if len(ch) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(ch))
	}
	if ev := <-ch; ev.Message != "a" {
		t.Errorf("expected first event to survive, got %q", ev.Message)
	}
}

func TestNilReporter(t *testing.T) {
	var r *Reporter
	r.Start(StageScanning, 1, "x")
	r.Increment("x")
	r.Complete("x")
}
