package gate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ImPhilipGlover/EntropicGarden/gate"
)

func TestAcquireReleaseBasic(t *testing.T) {
	g := gate.New()
	ctx, release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !g.Held() {
		t.Fatal("gate not held after Acquire")
	}
	if ctx == context.Background() {
		t.Fatal("Acquire did not return a derived context")
	}
	release()
	if g.Held() {
		t.Fatal("gate still held after Release")
	}
}

// TestReentrantAcquireDoesNotDeadlock checks the gate's reentrancy (§4.4):
// reacquiring with a context that already carries the token must not block.
func TestReentrantAcquireDoesNotDeadlock(t *testing.T) {
	g := gate.New()
	ctx, release1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		ctx2, release2, err := g.Acquire(ctx)
		if err != nil {
			t.Error(err)
		}
		_ = ctx2
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reentrant acquire deadlocked")
	}
	release1()
}

func TestConcurrentAcquireSerializes(t *testing.T) {
	g := gate.New()
	var active int32
	var mu sync.Mutex
	var raced bool

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := g.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			active++
			if active > 1 {
				raced = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	if raced {
		t.Fatal("two unrelated call chains held the gate concurrently")
	}
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unmatched release")
		}
	}()
	g := gate.New()
	_, release, _ := g.Acquire(context.Background())
	release()
	release() // second call: no matching acquire
}

func TestSiteRecordsCallerLocation(t *testing.T) {
	g := gate.New()
	_, release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	if g.Site() == "" {
		t.Fatal("Site() is empty after Acquire")
	}
}
