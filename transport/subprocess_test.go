package transport

import (
	"testing"
	"time"
)

func TestCloseAfterExitObserved(t *testing.T) {
	tr, err := Command("true", nil, WithKillWait(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Command: %v", err)
	}

	// Observe the exit first, the way a connection monitor does.
	select {
	case <-Exited(tr):
	case <-time.After(2 * time.Second):
		t.Fatal("process never exited")
	}

	// Close must still return promptly even though the exit was already
	// consumed by another observer.
	done := make(chan error, 1)
	go func() { done <- tr.Close() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked after exit was observed")
	}
}

func TestExitedMultipleObservers(t *testing.T) {
	tr, err := Command("true", nil)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	defer tr.Close()

	first, second := Exited(tr), Exited(tr)
	for i, ch := range []<-chan error{first, second} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("observer %d never saw the exit", i)
		}
	}
}

func TestExitedNonSubprocess(t *testing.T) {
	client, _ := MemoryPipe()
	if ch := Exited(client); ch != nil {
		t.Error("Exited on a non-subprocess transport should be nil")
	}
}
