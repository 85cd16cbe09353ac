package animation

import "time"

// Mixer owns one action per clip and advances the ones that are running.
type Mixer struct {
	clips   []*Clip
	actions map[*Clip]*Action
	running []*Action
	elapsed time.Duration
}

// NewMixer creates a mixer over a fixed clip set.
func NewMixer(clips []Clip) *Mixer {
	m := &Mixer{
		clips:   make([]*Clip, len(clips)),
		actions: make(map[*Clip]*Action, len(clips)),
	}
	for i := range clips {
		c := clips[i]
		m.clips[i] = &c
		m.actions[&c] = newAction(&c)
	}
	return m
}

func (m *Mixer) action(clip *Clip) *Action {
	return m.actions[clip]
}

// activate schedules the action for updates if it is not running already.
func (m *Mixer) activate(a *Action) {
	if a.running {
		return
	}
	a.running = true
	m.running = append(m.running, a)
}

// Update advances every running action by dt and drops the ones that faded
// out. It returns the actions that completed a play-once pass during this step.
func (m *Mixer) Update(dt time.Duration) []*Action {
	if dt < 0 {
		dt = 0
	}
	m.elapsed += dt

	var finished []*Action
	kept := m.running[:0]
	for _, a := range m.running {
		if a.update(dt) {
			finished = append(finished, a)
		}
		if !a.enabled {
			a.running = false
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(m.running); i++ {
		m.running[i] = nil
	}
	m.running = kept
	return finished
}

// Elapsed returns the total time the mixer has been advanced.
func (m *Mixer) Elapsed() time.Duration { return m.elapsed }

// Running returns the number of actions currently scheduled.
func (m *Mixer) Running() int { return len(m.running) }
