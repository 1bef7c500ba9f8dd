package faketest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFake_PauseRecordsCallAndUpdatesStatus(t *testing.T) {
	f := New()
	ctx := context.Background()

	if err := f.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if f.PauseCalls != 1 {
		t.Fatalf("expected 1 pause call, got %d", f.PauseCalls)
	}
	if !f.IsPaused() {
		t.Fatal("expected IsPaused true after Pause")
	}
}

func TestFake_PauseErrorIsScriptable(t *testing.T) {
	f := New()
	f.SetPauseError(errors.New("boom"))

	if err := f.Pause(context.Background()); err == nil {
		t.Fatal("expected scripted error from Pause")
	}
	if f.IsPaused() {
		t.Fatal("expected IsPaused false after failed Pause")
	}
}

func TestFake_LogsStreamDeliversQueuedLinesThenBlocks(t *testing.T) {
	f := New()
	f.PushLogLine("line one")
	f.PushLogLine("line two")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out := make(chan string, 2)
	done := make(chan error, 1)
	go func() { done <- f.LogsStream(ctx, true, 0, out) }()

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case line := <-out:
			got = append(got, line)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for queued log line")
		}
	}
	if len(got) != 2 || got[0] != "line one" || got[1] != "line two" {
		t.Fatalf("unexpected lines: %v", got)
	}

	<-done // should unblock once ctx expires
}

func TestFake_StatsErrorIsScriptable(t *testing.T) {
	f := New()
	f.SetStatsError(errors.New("boom"))

	if _, err := f.StatsSnapshot(context.Background()); err == nil {
		t.Fatal("expected scripted error from StatsSnapshot")
	}
}

func TestFake_TopErrorIsScriptable(t *testing.T) {
	f := New()
	f.SetTopError(errors.New("boom"))

	if _, err := f.Top(context.Background()); err == nil {
		t.Fatal("expected scripted error from Top")
	}
}
