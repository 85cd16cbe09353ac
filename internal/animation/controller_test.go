package animation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClips() []Clip {
	return []Clip{
		{Name: "Idle", Duration: 2 * time.Second},
		{Name: "Wave", Duration: 1500 * time.Millisecond},
		{Name: "Happy", Duration: time.Second},
		{Name: "Sad", Duration: 1200 * time.Millisecond},
		{Name: "Angry", Duration: 800 * time.Millisecond},
	}
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	return NewController(testClips(), DefaultOptions(), zerolog.Nop())
}

func stateFor(pose []ActionState, clip string) (ActionState, bool) {
	for _, s := range pose {
		if s.Clip == clip {
			return s, true
		}
	}
	return ActionState{}, false
}

func TestPlayLookupIsCaseInsensitive(t *testing.T) {
	c := newTestController(t)

	upper, ok := c.Resolve("ANGRY")
	require.True(t, ok)
	lower, ok := c.Resolve("angry")
	require.True(t, ok)
	assert.Equal(t, upper, lower)
	assert.Equal(t, "Angry", upper.Name)

	require.NoError(t, c.Play("  aNgRy ", true))
	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "Angry", cur.Clip)
}

func TestPlayUnknownClipKeepsState(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Play("Idle", true))

	err := c.Play("Backflip", false)
	require.ErrorIs(t, err, ErrUnknownClip)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "Idle", cur.Clip)
	assert.Len(t, c.Pose(), 1)
}

func TestNoCurrentBeforeFirstPlay(t *testing.T) {
	c := newTestController(t)
	_, ok := c.Current()
	assert.False(t, ok)
	assert.Empty(t, c.Pose())
}

func TestSingleCurrentAfterSequence(t *testing.T) {
	c := newTestController(t)

	sequence := []struct {
		name string
		loop bool
	}{
		{"Idle", true},
		{"wave", false},
		{"nope", true},
		{"Happy", false},
		{"Happy", false},
		{"IDLE", true},
	}
	for _, step := range sequence {
		_ = c.Play(step.name, step.loop)
		c.Update(100 * time.Millisecond)
	}

	currents := 0
	for _, s := range c.Pose() {
		if s.Current {
			currents++
			assert.Equal(t, "Idle", s.Clip)
		}
	}
	assert.Equal(t, 1, currents)
}

func TestCrossfadeDurations(t *testing.T) {
	for _, next := range []string{"Wave", "Happy", "Sad", "Angry"} {
		t.Run(next, func(t *testing.T) {
			c := newTestController(t)
			require.NoError(t, c.Play("Idle", true))
			c.Update(time.Second)

			require.NoError(t, c.Play(next, false))
			pose := c.Pose()

			out, ok := stateFor(pose, "Idle")
			require.True(t, ok)
			assert.True(t, out.Fading)
			assert.Equal(t, DefaultCrossfade, out.FadeDuration)
			assert.Equal(t, float32(0), out.FadeTarget)
			assert.False(t, out.Current)

			in, ok := stateFor(pose, next)
			require.True(t, ok)
			assert.True(t, in.Fading)
			assert.Equal(t, DefaultCrossfade, in.FadeDuration)
			assert.Equal(t, float32(1), in.FadeTarget)
			assert.Equal(t, time.Duration(0), in.Time)
			assert.True(t, in.Current)
		})
	}
}

func TestCrossfadeBlendsThenDropsOutgoing(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Play("Idle", true))
	c.Update(time.Second)
	require.NoError(t, c.Play("Wave", true))

	c.Update(250 * time.Millisecond)
	pose := c.Pose()
	require.Len(t, pose, 2)
	out, _ := stateFor(pose, "Idle")
	in, _ := stateFor(pose, "Wave")
	assert.InDelta(t, 0.5, out.Weight, 1e-4)
	assert.InDelta(t, 0.5, in.Weight, 1e-4)

	c.Update(250 * time.Millisecond)
	pose = c.Pose()
	require.Len(t, pose, 1)
	assert.Equal(t, "Wave", pose[0].Clip)
	assert.InDelta(t, 1.0, pose[0].Weight, 1e-6)
	assert.False(t, pose[0].Fading)
}

func TestRetriggerSameClipRestarts(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Play("Wave", false))
	c.Update(700 * time.Millisecond)

	require.NoError(t, c.Play("wave", false))
	pose := c.Pose()
	require.Len(t, pose, 1, "re-trigger must not fade the clip out against itself")
	assert.Equal(t, time.Duration(0), pose[0].Time)
	assert.True(t, pose[0].Fading)
	assert.Equal(t, float32(1), pose[0].FadeTarget)
}

func TestLoopOnceHoldsLastFrame(t *testing.T) {
	c := newTestController(t)

	var finished []string
	c.OnFinished(func(clip string) { finished = append(finished, clip) })

	require.NoError(t, c.Play("Angry", false))
	c.Update(700 * time.Millisecond)
	cur, _ := c.Current()
	assert.False(t, cur.Finished)

	c.Update(100 * time.Millisecond)
	cur, _ = c.Current()
	assert.True(t, cur.Finished)
	assert.Equal(t, 800*time.Millisecond, cur.Time)
	assert.Equal(t, []string{"Angry"}, finished)

	c.Update(5 * time.Second)
	cur, _ = c.Current()
	assert.Equal(t, 800*time.Millisecond, cur.Time, "held pose must not advance")
	assert.True(t, cur.Enabled)
	assert.Equal(t, []string{"Angry"}, finished)
}

func TestLoopRepeatNeverHalts(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Play("Happy", true))

	for i := 0; i < 50; i++ {
		c.Update(130 * time.Millisecond)
	}
	cur, _ := c.Current()
	assert.False(t, cur.Finished)
	assert.Equal(t, LoopRepeat, cur.Loop)
	assert.Less(t, cur.Time, time.Second)
	assert.Equal(t, (50*130*time.Millisecond)%time.Second, cur.Time)
}

func TestGestureIndexUsesSubstringOnce(t *testing.T) {
	clips := []Clip{
		{Name: "Armature|Idle_Breathing", Duration: time.Second},
		{Name: "Armature|Wave_Hand", Duration: time.Second},
		{Name: "Armature|Idle_Alt", Duration: time.Second},
	}
	c := NewController(clips, DefaultOptions(), zerolog.Nop())

	idle, ok := c.Resolve("idle")
	require.True(t, ok)
	assert.Equal(t, "Armature|Idle_Breathing", idle.Name, "first clip in asset order wins")

	wave, ok := c.Resolve("WAVE")
	require.True(t, ok)
	assert.Equal(t, "Armature|Wave_Hand", wave.Name)

	exact, ok := c.Resolve("armature|idle_alt")
	require.True(t, ok)
	assert.Equal(t, "Armature|Idle_Alt", exact.Name)

	_, ok = c.Resolve("Breath")
	assert.False(t, ok, "identifiers outside the gesture set are not re-scanned")
}

func TestZeroCrossfadeCuts(t *testing.T) {
	c := NewController(testClips(), Options{Crossfade: 0, Gestures: DefaultGestures}, zerolog.Nop())
	require.NoError(t, c.Play("Idle", true))
	require.NoError(t, c.Play("Sad", true))

	cur, _ := c.Current()
	assert.Equal(t, float32(1), cur.Weight)
	assert.False(t, cur.Fading)

	c.Update(time.Millisecond)
	pose := c.Pose()
	require.Len(t, pose, 1)
	assert.Equal(t, "Sad", pose[0].Clip)
}

func TestEaseInOutCurveEndpoints(t *testing.T) {
	assert.Equal(t, float32(0), CurveEaseInOut.apply(0))
	assert.Equal(t, float32(1), CurveEaseInOut.apply(1))
	assert.InDelta(t, 0.5, CurveEaseInOut.apply(0.5), 1e-6)
	assert.Equal(t, CurveEaseInOut, ParseCurve("ease-in-out"))
	assert.Equal(t, CurveLinear, ParseCurve("bogus"))
}
