package animation

import "time"

// fade ramps an action's weight between two values over a fixed interval.
type fade struct {
	from, to float32
	elapsed  time.Duration
	duration time.Duration
	curve    Curve
}

func (f *fade) weight() float32 {
	if f.duration <= 0 {
		return f.to
	}
	t := float32(f.elapsed) / float32(f.duration)
	return f.from + (f.to-f.from)*f.curve.apply(t)
}

func (f *fade) done() bool {
	return f.elapsed >= f.duration
}

// Action binds a clip to playback parameters. Actions are owned by a Mixer and
// only mutated from inside this package.
type Action struct {
	clip *Clip

	loop     LoopMode
	time     time.Duration
	weight   float32
	enabled  bool
	paused   bool
	finished bool
	running  bool

	fade *fade
}

func newAction(clip *Clip) *Action {
	return &Action{clip: clip, weight: 1}
}

// Clip returns the clip this action plays.
func (a *Action) Clip() Clip { return *a.clip }

// reset rewinds the action and cancels any fade in progress.
func (a *Action) reset() {
	a.time = 0
	a.enabled = true
	a.paused = false
	a.finished = false
	a.fade = nil
}

func (a *Action) fadeIn(d time.Duration, curve Curve) {
	a.fade = &fade{from: 0, to: 1, duration: d, curve: curve}
	a.weight = 0
	if d <= 0 {
		a.weight = 1
		a.fade = nil
	}
}

// fadeOut blends from the current weight down to zero. The action keeps
// advancing while it fades and is disabled once the ramp completes.
func (a *Action) fadeOut(d time.Duration, curve Curve) {
	if d <= 0 {
		a.weight = 0
		a.enabled = false
		a.fade = nil
		return
	}
	a.fade = &fade{from: a.weight, to: 0, duration: d, curve: curve}
}

// fadingOut reports whether the action is ramping towards zero.
func (a *Action) fadingOut() bool {
	return a.fade != nil && a.fade.to == 0
}

// update advances local time and the fade by dt. It returns true the moment a
// play-once action reaches the end of its clip.
func (a *Action) update(dt time.Duration) (finishedNow bool) {
	if !a.enabled {
		return false
	}

	if a.fade != nil {
		a.fade.elapsed += dt
		a.weight = a.fade.weight()
		if a.fade.done() {
			out := a.fade.to == 0
			a.fade = nil
			if out {
				a.enabled = false
				return false
			}
		}
	}

	if a.paused {
		return false
	}

	a.time += dt
	d := a.clip.Duration

	switch a.loop {
	case LoopOnce:
		if a.time >= d {
			a.time = d
			a.paused = true
			a.finished = true
			return true
		}
	default:
		if d > 0 {
			a.time %= d
		} else {
			a.time = 0
		}
	}
	return false
}

// ActionState is a read-only snapshot of an action.
type ActionState struct {
	Clip         string        `json:"clip"`
	Loop         LoopMode      `json:"loop"`
	Time         time.Duration `json:"time"`
	Duration     time.Duration `json:"duration"`
	Weight       float32       `json:"weight"`
	Enabled      bool          `json:"enabled"`
	Finished     bool          `json:"finished"`
	Fading       bool          `json:"fading"`
	FadeDuration time.Duration `json:"fadeDuration,omitempty"`
	FadeTarget   float32       `json:"fadeTarget,omitempty"`
	Current      bool          `json:"current"`
}

func (a *Action) state(current bool) ActionState {
	s := ActionState{
		Clip:     a.clip.Name,
		Loop:     a.loop,
		Time:     a.time,
		Duration: a.clip.Duration,
		Weight:   a.weight,
		Enabled:  a.enabled,
		Finished: a.finished,
		Current:  current,
	}
	if a.fade != nil {
		s.Fading = true
		s.FadeDuration = a.fade.duration
		s.FadeTarget = a.fade.to
	}
	return s
}
