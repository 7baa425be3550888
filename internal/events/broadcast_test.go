package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	b := NewBroadcaster[int]()

	var a, c []int
	unsubA := b.Subscribe(func(v int) { a = append(a, v) })
	b.Subscribe(func(v int) { c = append(c, v) })
	require.Equal(t, 2, b.Len())

	b.Publish(1)
	unsubA()
	unsubA()
	b.Publish(2)

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, c)
	assert.Equal(t, 1, b.Len())
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster[string]()
	called := false
	b.Subscribe(func(string) { called = true })

	b.Close()
	b.Publish("x")
	b.Subscribe(func(string) { called = true })()

	assert.False(t, called)
	assert.Zero(t, b.Len())
}

func TestChan_KeepsNewestWhenFull(t *testing.T) {
	b := NewBroadcaster[int]()
	ch, cancel := Chan(b, 2)
	defer cancel()

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)

	assert.Equal(t, 2, <-ch)
	assert.Equal(t, 3, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}
