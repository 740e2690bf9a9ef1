package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishFanOut(t *testing.T) {
	b := New()
	s1 := b.Subscribe(4)
	s2 := b.Subscribe(4)
	b.Publish("hello")
	assert.Equal(t, "hello", <-s1)
	assert.Equal(t, "hello", <-s2)
	b.Close()
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := New()
	_ = b.Subscribe(1)
	b.Publish(1)
	b.Publish(2)
	assert.Equal(t, uint64(1), b.Dropped())
	b.Close()
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	s := b.Subscribe(1)
	b.Unsubscribe(s)
	_, ok := <-s
	assert.False(t, ok)
	b.Publish("ignored")
	b.Close()
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New()
	s := b.Subscribe(1)
	b.Close()
	b.Publish("late")
	_, ok := <-s
	assert.False(t, ok)
}
