package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishesToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string

	d.Subscribe(EventAccountLocked, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.AccountID)
		return errors.New("email stub down")
	})
	d.Subscribe(EventAccountLocked, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.AccountID)
		return nil
	})
	d.Subscribe(EventLoginFailed, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventAccountLocked, AccountID: "acc-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email stub down")
	assert.Equal(t, []string{"first:acc-1", "second:acc-1"}, got)
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventPasswordChanged}))
}
