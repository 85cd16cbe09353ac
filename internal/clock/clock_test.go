package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	f := NewFake(epoch)

	short := f.After(100 * time.Millisecond)
	long := f.After(time.Second)
	require.Equal(t, 2, f.Pending())

	f.Advance(500 * time.Millisecond)

	select {
	case <-short:
	default:
		t.Fatal("short timer should have fired")
	}
	select {
	case <-long:
		t.Fatal("long timer fired early")
	default:
	}
	assert.Equal(t, 1, f.Pending())

	f.Advance(500 * time.Millisecond)
	<-long
	assert.Equal(t, epoch.Add(time.Second), f.Now())
}

func TestAutoFakeSleepsInstantly(t *testing.T) {
	f := NewAutoFake(epoch)

	require.NoError(t, Sleep(context.Background(), f, 500*time.Millisecond))
	require.NoError(t, Sleep(context.Background(), f, 250*time.Millisecond))

	assert.Equal(t, epoch.Add(750*time.Millisecond), f.Now())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 250 * time.Millisecond}, f.Waits())
}

func TestSleepHonoursCancellation(t *testing.T) {
	f := NewFake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, f, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
