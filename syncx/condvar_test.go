package syncx

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCondVar_SignalWakesWaiter(t *testing.T) {
	m := NewMutex()
	cv := NewCondVar()
	ready := false

	woke := make(chan struct{})
	go func() {
		m.Lock(1, nil)
		for !ready {
			cv.Wait(m, 1, nil)
		}
		m.Unlock()
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	m.Lock(2, nil)
	ready = true
	m.Unlock()
	cv.Signal()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestCondVar_BroadcastWakesAll(t *testing.T) {
	m := NewMutex()
	cv := NewCondVar()
	ready := false
	var woken atomic.Int64

	const n = 8
	done := make(chan struct{}, n)
	for i := int64(0); i < n; i++ {
		go func(taskID int64) {
			m.Lock(taskID, nil)
			for !ready {
				cv.Wait(m, taskID, nil)
			}
			m.Unlock()
			woken.Add(1)
			done <- struct{}{}
		}(i + 10)
	}

	time.Sleep(10 * time.Millisecond)
	m.Lock(1, nil)
	ready = true
	m.Unlock()
	cv.Broadcast()

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d/%d waiters woke", woken.Load(), n)
		}
	}
}
