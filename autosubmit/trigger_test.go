/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package autosubmit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (chan Request, func(Request)) {
	ch := make(chan Request, 16)
	return ch, func(r Request) { ch <- r }
}

func receive(t *testing.T, ch chan Request) Request {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
		return Request{}
	}
}

func assertQuiet(t *testing.T, ch chan Request, d time.Duration) {
	t.Helper()

	select {
	case r := <-ch:
		t.Fatalf("unexpected dispatch %+v", r)
	case <-time.After(d):
	}
}

func TestScheduleDebouncesKeystrokes(t *testing.T) {
	ch, fire := collect()
	trig := New(40*time.Millisecond, fire)

	trig.Schedule("p")
	trig.Schedule("pi")
	last := trig.Schedule("pid")

	r := receive(t, ch)
	assert.Equal(t, Request{Seq: last, Input: "pid"}, r)
	assert.True(t, trig.Claim(r.Seq))
	assert.True(t, trig.InFlight())

	trig.Done()
	assert.False(t, trig.InFlight())
	assertQuiet(t, ch, 80*time.Millisecond)
}

func TestZeroDelayDispatchesImmediately(t *testing.T) {
	ch, fire := collect()
	trig := New(0, fire)

	seq := trig.Schedule("mew")

	assert.Equal(t, seq, receive(t, ch).Seq)
}

func TestNegativeDelayIsImmediate(t *testing.T) {
	trig := New(-time.Second, func(Request) {})
	assert.Equal(t, time.Duration(0), trig.Delay())

	trig.SetDelay(-time.Millisecond)
	assert.Equal(t, time.Duration(0), trig.Delay())
}

func TestCancelStopsPendingTimer(t *testing.T) {
	ch, fire := collect()
	trig := New(30*time.Millisecond, fire)

	trig.Schedule("pidgey")
	require.True(t, trig.Pending())
	trig.Cancel()

	assert.False(t, trig.Pending())
	assertQuiet(t, ch, 80*time.Millisecond)
}

func TestCancelInvalidatesDispatchedRequest(t *testing.T) {
	ch, fire := collect()
	trig := New(0, fire)

	trig.Schedule("pidgey")
	r := receive(t, ch)

	trig.Cancel()

	assert.False(t, trig.Claim(r.Seq))
	trig.Done()
	assert.False(t, trig.InFlight())
}

func TestInFlightParksNextRequest(t *testing.T) {
	ch, fire := collect()
	trig := New(0, fire)

	trig.Schedule("pidgey")
	first := receive(t, ch)

	second := trig.Schedule("pidgeotto")
	assertQuiet(t, ch, 50*time.Millisecond)
	assert.True(t, trig.Pending())
	assert.False(t, trig.Claim(first.Seq), "superseded by the newer keystroke")

	trig.Done()

	r := receive(t, ch)
	assert.Equal(t, Request{Seq: second, Input: "pidgeotto"}, r)
	assert.True(t, trig.Claim(r.Seq))
	trig.Done()
}

func TestParkedRequestDroppedWhenCancelled(t *testing.T) {
	ch, fire := collect()
	trig := New(0, fire)

	trig.Schedule("pidgey")
	receive(t, ch)

	trig.Schedule("pidgeotto")
	assert.Eventually(t, trig.Pending, time.Second, 5*time.Millisecond)

	trig.Cancel()
	trig.Done()

	assertQuiet(t, ch, 50*time.Millisecond)
	assert.False(t, trig.InFlight())
}
