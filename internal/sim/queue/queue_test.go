package queue

import (
	"sync"
	"testing"
)

func TestConcurrentEachItemConsumedOnce(t *testing.T) {
	var q Concurrent[int]
	const producers, per = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				q.Push(p*per + i)
			}
		}(p)
	}

	seen := make(map[int]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	drain := func() {
		for _, v := range q.GetAndEmpty() {
			seen[v]++
		}
	}
loop:
	for {
		select {
		case <-done:
			break loop
		default:
			drain()
		}
	}
	drain()

	if len(seen) != producers*per {
		t.Fatalf("seen=%d want %d", len(seen), producers*per)
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("item %d consumed %d times", v, n)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len=%d want 0", q.Len())
	}
}

func TestSwap(t *testing.T) {
	q := []string{"a", "b"}
	got := Swap(&q)
	q = append(q, "c")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got=%v", got)
	}
	if len(q) != 1 || q[0] != "c" {
		t.Fatalf("q=%v", q)
	}
}
