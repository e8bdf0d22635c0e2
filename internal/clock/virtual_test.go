package clock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2023, 10, 10, 13, 55, 36, 0, time.UTC)

func TestVirtualClock_AdvanceAndSet(t *testing.T) {
	vc := NewVirtualClock(epoch)
	vc.Advance(90 * time.Second)

	if got, want := vc.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
	if got := vc.Since(epoch); got != 90*time.Second {
		t.Errorf("Since(epoch) = %v, want %v", got, 90*time.Second)
	}

	target := epoch.Add(time.Hour)
	vc.Set(target)
	if got := vc.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
}

func TestVirtualClock_Panics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*VirtualClock)
	}{
		{"negative advance", func(vc *VirtualClock) { vc.Advance(-time.Second) }},
		{"set to past", func(vc *VirtualClock) { vc.Set(epoch.Add(-time.Second)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewVirtualClock(epoch))
		})
	}
}

func TestVirtualClock_After_FiresInDeadlineOrder(t *testing.T) {
	vc := NewVirtualClock(epoch)
	short := vc.After(time.Second)
	long := vc.After(10 * time.Second)

	if n := vc.Waiters(); n != 2 {
		t.Fatalf("Waiters() = %d, want 2", n)
	}

	vc.Advance(5 * time.Second)
	select {
	case got := <-short:
		if want := epoch.Add(5 * time.Second); !got.Equal(want) {
			t.Errorf("short fired with %v, want %v", got, want)
		}
	default:
		t.Fatal("short waiter did not fire")
	}
	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}

	vc.Set(epoch.Add(10 * time.Second))
	select {
	case <-long:
	default:
		t.Fatal("long waiter did not fire on Set")
	}
	if n := vc.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d, want 0", n)
	}
}

func TestVirtualClock_After_NonPositiveFiresImmediately(t *testing.T) {
	vc := NewVirtualClock(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-vc.After(d):
		default:
			t.Errorf("After(%v) did not fire immediately", d)
		}
	}
}

func TestInstantClock_AfterAdvances(t *testing.T) {
	vc := NewInstantClock(epoch)

	for i := 0; i < 3; i++ {
		select {
		case <-vc.After(2 * time.Second):
		default:
			t.Fatalf("After() #%d did not fire immediately", i)
		}
	}

	if got, want := vc.Now(), epoch.Add(6*time.Second); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
	if got := vc.Slept(); got != 6*time.Second {
		t.Errorf("Slept() = %v, want %v", got, 6*time.Second)
	}
}

func TestInstantClock_FiresPendingWaiters(t *testing.T) {
	vc := NewInstantClock(epoch)
	vc.mu.Lock()
	ch := make(chan time.Time, 1)
	vc.waiters = append(vc.waiters, waiter{deadline: epoch.Add(time.Second), ch: ch})
	vc.mu.Unlock()

	<-vc.After(time.Second)

	select {
	case <-ch:
	default:
		t.Fatal("pending waiter did not fire when instant After advanced past it")
	}
}

func TestSleep(t *testing.T) {
	vc := NewInstantClock(epoch)
	if err := Sleep(context.Background(), vc, time.Minute); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if got := vc.Since(epoch); got != time.Minute {
		t.Errorf("Since(epoch) = %v, want %v", got, time.Minute)
	}
}

func TestSleep_Canceled(t *testing.T) {
	vc := NewVirtualClock(epoch)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Sleep(ctx, vc, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Sleep() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep() did not return after cancel")
	}
}

func TestSleep_ZeroDoesNotTouchClock(t *testing.T) {
	vc := NewVirtualClock(epoch)
	if err := Sleep(context.Background(), vc, 0); err != nil {
		t.Fatalf("Sleep(0) error = %v", err)
	}
	if n := vc.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d, want 0", n)
	}
}

func TestVirtualClock_ConcurrentAccess(t *testing.T) {
	vc := NewInstantClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = vc.Now()
			_ = vc.Since(epoch)
		}()
		go func() {
			defer wg.Done()
			<-vc.After(time.Millisecond)
		}()
	}
	wg.Wait()

	if got, want := vc.Now(), epoch.Add(50*time.Millisecond); !got.Equal(want) {
		t.Errorf("after concurrent ops, Now() = %v, want %v", got, want)
	}
}

func TestClocks_ImplementClock(t *testing.T) {
	var _ Clock = NewRealClock()
	var _ Clock = NewVirtualClock(epoch)
}
