package deque

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	d := New[int]()
	d.PushRight(1)
	d.PushRight(2)
	d.PushLeft(0)

	if diff := cmp.Diff([]int{0, 1, 2}, d.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	v, err := d.TryPopLeft()
	if err != nil || v != 0 {
		t.Fatalf("TryPopLeft = %v, %v; want 0, nil", v, err)
	}
	v, err = d.TryPopRight()
	if err != nil || v != 2 {
		t.Fatalf("TryPopRight = %v, %v; want 2, nil", v, err)
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestBoundedEviction(t *testing.T) {
	t.Parallel()

	t.Run("push right evicts oldest on the left", func(t *testing.T) {
		t.Parallel()
		d := NewBounded[int](3)
		for i := 1; i <= 10; i++ {
			d.PushRight(i)
		}
		assert.Equal(t, 3, d.Len())
		assert.Equal(t, []int{8, 9, 10}, d.Snapshot())
	})

	t.Run("push left evicts oldest on the right", func(t *testing.T) {
		t.Parallel()
		d := NewBounded[int](3)
		for i := 1; i <= 10; i++ {
			d.PushLeft(i)
		}
		assert.Equal(t, 3, d.Len())
		assert.Equal(t, []int{10, 9, 8}, d.Snapshot())
	})

	t.Run("length never exceeds capacity", func(t *testing.T) {
		t.Parallel()
		d := NewBounded[int](5)
		for i := 0; i < 100; i++ {
			d.PushRight(i)
			require.LessOrEqual(t, d.Len(), 5)
		}
	})
}

func TestUnboundedGrowth(t *testing.T) {
	d := New[int]()
	want := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		d.PushRight(i)
		want = append(want, i)
	}
	if diff := cmp.Diff(want, d.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch after growth (-want +got):\n%s", diff)
	}
}

func TestTryPopEmpty(t *testing.T) {
	d := New[string]()

	_, err := d.TryPopLeft()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = d.TryPopRight()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBlockingPopTimeout(t *testing.T) {
	d := New[int]()
	timeout := 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	_, err := d.PopLeft(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrEmpty)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 10*timeout)
}

func TestBlockingPopReceivesPush(t *testing.T) {
	d := New[int]()

	done := make(chan int, 1)
	go func() {
		v, err := d.PopRight(context.Background())
		if err != nil {
			done <- -1
			return
		}
		done <- v
	}()

	// Give the popper a chance to park before pushing.
	time.Sleep(10 * time.Millisecond)
	d.PushRight(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("blocked pop never woke up")
	}
}

// TestConcurrentHandoff checks the single-delivery guarantee: with N blocked
// poppers and M pushes, every pushed value reaches exactly one popper.
func TestConcurrentHandoff(t *testing.T) {
	const poppers = 8
	const pushes = 64

	d := NewBounded[int](pushes)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	got := make(map[int]int)
	var wg sync.WaitGroup

	for i := 0; i < poppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := d.PopLeft(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				got[v]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < pushes; i++ {
		d.PushRight(i)
	}

	// Wait until everything has been consumed, then release the poppers.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == pushes {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	require.Len(t, got, pushes)
	for v, count := range got {
		assert.Equalf(t, 1, count, "value %d delivered %d times", v, count)
	}
}

func TestFewerPushesThanPoppers(t *testing.T) {
	const poppers = 4
	const pushes = 2

	d := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	results := make(chan error, poppers)
	for i := 0; i < poppers; i++ {
		go func() {
			_, err := d.PopLeft(ctx)
			results <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < pushes; i++ {
		d.PushRight(i)
	}

	succeeded, timedOut := 0, 0
	for i := 0; i < poppers; i++ {
		if err := <-results; err == nil {
			succeeded++
		} else {
			timedOut++
		}
	}
	assert.Equal(t, pushes, succeeded)
	assert.Equal(t, poppers-pushes, timedOut)
}

func TestExtend(t *testing.T) {
	d := New[int]()
	d.Extend([]int{1, 2, 3})
	assert.Equal(t, []int{1, 2, 3}, d.Snapshot())

	// Successive left pushes reverse the relative order of the input.
	d.ExtendLeft([]int{4, 5, 6})
	assert.Equal(t, []int{6, 5, 4, 1, 2, 3}, d.Snapshot())
}

func TestCountClearAt(t *testing.T) {
	d := New[int]()
	d.Extend([]int{7, 8, 7, 9})

	assert.Equal(t, 2, d.Count(7))
	assert.Equal(t, 0, d.Count(11))

	v, err := d.At(1)
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	_, err = d.At(4)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = d.At(-1)
	assert.ErrorIs(t, err, ErrEmpty)

	d.Clear()
	assert.Equal(t, 0, d.Len())
	_, err = d.TryPopLeft()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReverseRotate(t *testing.T) {
	t.Parallel()

	t.Run("reverse", func(t *testing.T) {
		t.Parallel()
		d := New[int]()
		d.Extend([]int{1, 2, 3, 4})
		d.Reverse()
		assert.Equal(t, []int{4, 3, 2, 1}, d.Snapshot())
	})

	t.Run("rotate right", func(t *testing.T) {
		t.Parallel()
		d := New[int]()
		d.Extend([]int{1, 2, 3, 4, 5})
		d.Rotate(2)
		assert.Equal(t, []int{4, 5, 1, 2, 3}, d.Snapshot())
	})

	t.Run("rotate left", func(t *testing.T) {
		t.Parallel()
		d := New[int]()
		d.Extend([]int{1, 2, 3, 4, 5})
		d.Rotate(-1)
		assert.Equal(t, []int{2, 3, 4, 5, 1}, d.Snapshot())
	})

	t.Run("rotate wraps modulo length", func(t *testing.T) {
		t.Parallel()
		d := New[int]()
		d.Extend([]int{1, 2, 3})
		d.Rotate(7) // same as 1
		assert.Equal(t, []int{3, 1, 2}, d.Snapshot())
	})
}

func TestEvictionWhileBlockedPopperWaits(t *testing.T) {
	// A bounded queue that evicts must still wake a parked popper with the
	// surviving element.
	d := NewBounded[int](1)

	done := make(chan int, 1)
	go func() {
		v, _ := d.PopLeft(context.Background())
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	d.PushRight(1)
	d.PushRight(2) // evicts 1 unless the popper already took it

	select {
	case v := <-done:
		if v != 1 && v != 2 {
			t.Fatalf("popped %d, want 1 or 2", v)
		}
	case <-time.After(time.Second):
		t.Fatal("popper never woke up")
	}
}
