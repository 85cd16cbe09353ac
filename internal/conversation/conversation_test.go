package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/normanking/guardavatar/internal/bus"
	"github.com/normanking/guardavatar/internal/clock"
	"github.com/normanking/guardavatar/internal/speech"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingAnimator accepts any of the known clips and records every request.
type recordingAnimator struct {
	mu    sync.Mutex
	ready bool
	clips map[string]bool
	plays []string
	loops []bool
}

func newAnimator(clips ...string) *recordingAnimator {
	a := &recordingAnimator{ready: true, clips: map[string]bool{}}
	for _, c := range clips {
		a.clips[strings.ToLower(c)] = true
	}
	return a
}

func (a *recordingAnimator) Ready() bool { return a.ready }

func (a *recordingAnimator) Play(name string, loop bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.clips[strings.ToLower(name)] {
		return errors.New("no clip matches name")
	}
	a.plays = append(a.plays, name)
	a.loops = append(a.loops, loop)
	return nil
}

func (a *recordingAnimator) Plays() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.plays...)
}

// recordingEngine wraps another engine and records what it was asked to say.
type recordingEngine struct {
	mu     sync.Mutex
	inner  speech.Engine
	spoken []string
}

func (e *recordingEngine) Speak(ctx context.Context, text string) (*speech.Utterance, error) {
	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.mu.Unlock()
	return e.inner.Speak(ctx, text)
}

func (e *recordingEngine) Spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

// funcEngine adapts a function to speech.Engine.
type funcEngine func(ctx context.Context, text string) (*speech.Utterance, error)

func (f funcEngine) Speak(ctx context.Context, text string) (*speech.Utterance, error) {
	return f(ctx, text)
}

var allClips = []string{"Idle", "Wave", "Happy", "Sad", "Angry"}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in    string
		want  Label
		known bool
	}{
		{"hate_speech", LabelHateSpeech, true},
		{"Hate Speech", LabelHateSpeech, true},
		{"0", LabelHateSpeech, true},
		{"offensive-language", LabelOffensiveLanguage, true},
		{"1", LabelOffensiveLanguage, true},
		{" NEITHER ", LabelNeither, true},
		{"2", LabelNeither, true},
		{"spam", Label("spam"), false},
		{"", Label(""), false},
	}
	for _, tt := range tests {
		got := ParseLabel(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.known, got.Known(), "input %q", tt.in)
	}
}

func TestResponseTable(t *testing.T) {
	tests := []struct {
		label   Label
		text    string
		gesture string
	}{
		{LabelHateSpeech, "I have detected hate speech. This language is harmful and unacceptable.", "Angry"},
		{LabelOffensiveLanguage, "This content seems to contain offensive language. It might be inappropriate for some audiences.", "Sad"},
		{LabelNeither, "This content appears to be safe. Everything looks good!", "Happy"},
		{Label("spam"), "", ""},
	}
	for _, tt := range tests {
		r := ResponseFor(tt.label)
		assert.Equal(t, tt.text, r.Utterance, "label %s", tt.label)
		assert.Equal(t, tt.gesture, r.Gesture, "label %s", tt.label)
	}
}

func TestBuildQueue(t *testing.T) {
	q := BuildQueue(LabelHateSpeech)
	require.Equal(t, 2, q.Len())

	first, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, Intro, first)
	assert.Equal(t, "Let me analyze this text for you.", first.Utterance)
	assert.Equal(t, "Wave", first.Gesture)

	second, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "Angry", second.Gesture)

	_, ok = q.Next()
	assert.False(t, ok)
	assert.Empty(t, q.Steps())
}

func TestConverseScenario(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	eng := &recordingEngine{inner: speech.NewSimulated(fake, 60, zerolog.Nop())}
	history := NewHistory(HistoryConfig{Clock: fake})

	o := NewOrchestrator(anim, eng, Options{Clock: fake, History: history}, zerolog.Nop())
	require.NoError(t, o.Converse(context.Background(), "some text", LabelNeither))

	assert.Equal(t, []string{"Wave", "Idle", "Happy", "Idle"}, anim.Plays())
	assert.Equal(t, []bool{false, true, false, true}, anim.loops)
	assert.Equal(t, []string{
		"Let me analyze this text for you.",
		"This content appears to be safe. Everything looks good!",
	}, eng.Spoken())

	intro := speech.EstimateDuration(Intro.Utterance, 60)
	reply := speech.EstimateDuration(ResponseFor(LabelNeither).Utterance, 60)
	assert.Equal(t, []time.Duration{intro, DefaultPacing, reply, DefaultPacing}, fake.Waits())
	assert.Equal(t, time.Unix(0, 0).Add(intro+reply+2*DefaultPacing), fake.Now())

	exchanges := history.Exchanges()
	require.Len(t, exchanges, 1)
	assert.Equal(t, "some text", exchanges[0].Input)
	assert.Equal(t, LabelNeither, exchanges[0].Label)
}

func TestConverseGestureOrderPerLabel(t *testing.T) {
	for _, label := range Labels {
		t.Run(label.String(), func(t *testing.T) {
			fake := clock.NewAutoFake(time.Unix(0, 0))
			anim := newAnimator(allClips...)
			eng := &recordingEngine{inner: speech.NewSimulated(fake, 0, zerolog.Nop())}

			o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())
			require.NoError(t, o.Converse(context.Background(), "x", label))

			want := ResponseFor(label)
			assert.Equal(t, []string{"Wave", "Idle", want.Gesture, "Idle"}, anim.Plays())
			assert.ElementsMatch(t, []string{"Wave", want.Gesture, "Idle", "Idle"}, anim.Plays())
			assert.Equal(t, []string{Intro.Utterance, want.Utterance}, eng.Spoken())
		})
	}
}

func TestConverseUnknownLabel(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	eng := &recordingEngine{inner: speech.NewSimulated(fake, 0, zerolog.Nop())}

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())
	require.NoError(t, o.Converse(context.Background(), "x", ParseLabel("spam")))

	assert.Equal(t, []string{"Wave", "Idle", "Idle"}, anim.Plays())
	assert.Equal(t, []string{Intro.Utterance}, eng.Spoken())

	waits := fake.Waits()
	require.Len(t, waits, 3)
	assert.Equal(t, DefaultPacing, waits[1])
	assert.Equal(t, DefaultPacing, waits[2])
}

func TestConverseWithoutAvatarIsNoop(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	anim.ready = false
	eng := &recordingEngine{inner: speech.NewSimulated(fake, 0, zerolog.Nop())}

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())
	require.NoError(t, o.Converse(context.Background(), "x", LabelNeither))

	assert.Empty(t, anim.Plays())
	assert.Empty(t, eng.Spoken())
	assert.Empty(t, fake.Waits())
}

func TestConverseMissingGestureStillSpeaks(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator("Idle")
	eng := &recordingEngine{inner: speech.NewSimulated(fake, 0, zerolog.Nop())}

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())
	require.NoError(t, o.Converse(context.Background(), "x", LabelHateSpeech))

	assert.Equal(t, []string{"Idle", "Idle"}, anim.Plays())
	assert.Len(t, eng.Spoken(), 2)
}

func TestConverseSpeechStartFailure(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	eng := funcEngine(func(context.Context, string) (*speech.Utterance, error) {
		return nil, errors.New("engine offline")
	})

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())
	require.NoError(t, o.Converse(context.Background(), "x", LabelOffensiveLanguage))

	assert.Equal(t, []string{"Wave", "Idle", "Sad", "Idle"}, anim.Plays())
	assert.Equal(t, []time.Duration{DefaultPacing, DefaultPacing}, fake.Waits())
}

func TestConverseSpeechTimeout(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)

	var mu sync.Mutex
	var stalled []*speech.Utterance
	eng := funcEngine(func(ctx context.Context, text string) (*speech.Utterance, error) {
		u := speech.NewUtterance(text)
		mu.Lock()
		stalled = append(stalled, u)
		mu.Unlock()
		return u, nil
	})

	o := NewOrchestrator(anim, eng, Options{Clock: fake, SpeechTimeout: 20 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	require.NoError(t, o.Converse(context.Background(), "x", LabelNeither))
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, []string{"Wave", "Idle", "Happy", "Idle"}, anim.Plays())
	mu.Lock()
	assert.Len(t, stalled, 2)
	mu.Unlock()
}

func TestConverseSpeechError(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	eng := funcEngine(func(ctx context.Context, text string) (*speech.Utterance, error) {
		u := speech.NewUtterance(text)
		u.Complete(errors.New("audio device lost"))
		return u, nil
	})

	b := bus.NewEventBus()
	var mu sync.Mutex
	var failed int
	b.Subscribe(bus.EventTypeSpeechFailed, func(bus.Event) {
		mu.Lock()
		failed++
		mu.Unlock()
	})

	o := NewOrchestrator(anim, eng, Options{Clock: fake, Bus: b}, zerolog.Nop())
	require.NoError(t, o.Converse(context.Background(), "x", LabelNeither))
	assert.Equal(t, []string{"Wave", "Idle", "Happy", "Idle"}, anim.Plays())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failed == 2
	}, time.Second, 5*time.Millisecond)
}

func TestConverseCancelled(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	started := make(chan struct{})
	eng := funcEngine(func(ctx context.Context, text string) (*speech.Utterance, error) {
		close(started)
		return speech.NewUtterance(text), nil
	})

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- o.Converse(ctx, "x", LabelNeither) }()

	<-started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, []string{"Wave"}, anim.Plays())
}

func TestConverseIsSerialized(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	pending := make(chan *speech.Utterance)
	eng := funcEngine(func(ctx context.Context, text string) (*speech.Utterance, error) {
		u := speech.NewUtterance(text)
		pending <- u
		return u, nil
	})

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, o.Converse(context.Background(), "first", LabelNeither))
	}()

	first := <-pending

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, o.Converse(context.Background(), "second", LabelOffensiveLanguage))
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"Wave"}, anim.Plays(), "second conversation must wait")

	first.Complete(nil)
	for i := 0; i < 3; i++ {
		(<-pending).Complete(nil)
	}
	wg.Wait()

	assert.Equal(t, []string{
		"Wave", "Idle", "Happy", "Idle",
		"Wave", "Idle", "Sad", "Idle",
	}, anim.Plays())
}

func TestConverseWaitingCallHonoursContext(t *testing.T) {
	fake := clock.NewAutoFake(time.Unix(0, 0))
	anim := newAnimator(allClips...)
	pending := make(chan *speech.Utterance, 4)
	eng := funcEngine(func(ctx context.Context, text string) (*speech.Utterance, error) {
		u := speech.NewUtterance(text)
		pending <- u
		return u, nil
	})

	o := NewOrchestrator(anim, eng, Options{Clock: fake}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- o.Converse(context.Background(), "first", LabelNeither) }()
	first := <-pending

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Converse(ctx, "second", LabelNeither), context.DeadlineExceeded)

	first.Complete(nil)
	(<-pending).Complete(nil)
	require.NoError(t, <-done)
}
