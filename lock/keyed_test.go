package lock

import (
	"sync"
	"testing"
	"time"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("/a")
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxSeen)
	}
	if k.Len() != 0 {
		t.Fatalf("expected entries released, got %d", k.Len())
	}
}

func TestKeyed_DifferentKeysIndependent(t *testing.T) {
	k := New()
	unlockA := k.Lock("/a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("/b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on /b blocked by /a")
	}
	unlockA()
}

func TestKeyed_MultiKeyOrderAndDuplicates(t *testing.T) {
	k := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			k.Lock("/x", "/y")()
		}()
		go func() {
			defer wg.Done()
			k.Lock("/y", "/x", "/y")()
		}()
	}
	wg.Wait()
	if k.Len() != 0 {
		t.Fatalf("expected entries released, got %d", k.Len())
	}
}
