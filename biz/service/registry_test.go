package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	custerror "github.com/polycast/relay/internal/error"
)

func Test_SessionRegistry_Exclusivity(t *testing.T) {
	registry := NewSessionRegistry()

	first := &Session{SessionId: "s1", UserId: "u1", StartTime: time.Now()}
	if err := registry.Register("u1", first); err != nil {
		t.Fatalf("first register failed: %s", err)
	}

	second := &Session{SessionId: "s2", UserId: "u1", StartTime: time.Now()}
	err := registry.Register("u1", second)
	if err == nil {
		t.Fatal("second register should conflict")
	}
	custError, ok := err.(*custerror.CustomError)
	if !ok || custError.Code != custerror.CodeAlreadyExists {
		t.Fatalf("expected already-exists error, got %s", err)
	}

	found, ok := registry.Lookup("u1")
	if !ok || found.SessionId != "s1" {
		t.Fatal("registered session should remain the first one")
	}
}

func Test_SessionRegistry_ConcurrentRegister(t *testing.T) {
	registry := NewSessionRegistry()

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			session := &Session{
				SessionId: fmt.Sprintf("s%d", i),
				UserId:    "u1",
				StartTime: time.Now(),
			}
			if err := registry.Register("u1", session); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly 1 successful register, got %d", successes.Load())
	}
}

func Test_SessionRegistry_Unregister(t *testing.T) {
	registry := NewSessionRegistry()

	if _, err := registry.Unregister("u1"); err == nil {
		t.Fatal("unregister without session should fail")
	} else if custError, ok := err.(*custerror.CustomError); !ok || custError.Code != custerror.CodeNotFound {
		t.Fatalf("expected not-found error, got %s", err)
	}

	session := &Session{SessionId: "s1", UserId: "u1", StartTime: time.Now()}
	if err := registry.Register("u1", session); err != nil {
		t.Fatalf("register failed: %s", err)
	}

	removed, err := registry.Unregister("u1")
	if err != nil {
		t.Fatalf("unregister failed: %s", err)
	}
	if removed.SessionId != "s1" {
		t.Fatalf("unexpected session removed: %s", removed.SessionId)
	}

	if _, found := registry.Lookup("u1"); found {
		t.Fatal("session should be gone after unregister")
	}
}
