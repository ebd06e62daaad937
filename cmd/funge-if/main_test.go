package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/funge/bridge"
)

func TestRunRemovesSocketOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "if.sock")
	done := make(chan error, 1)
	go func() { done <- run(path, false, 1) }()

	var c *bridge.Client
	var err error
	for i := 0; i < 100; i++ {
		if c, err = bridge.Dial(t.Context(), path, time.Second); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(true); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket file still present: %v", err)
	}
}

func TestRunListenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "if.sock")
	if err := run(path, false, 1); err == nil {
		t.Fatal("run should fail when the socket cannot be created")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket file present after failed listen: %v", err)
	}
}
