package bridge

import (
	"sync/atomic"

	"github.com/normanking/guardavatar/internal/animation"
	"github.com/normanking/guardavatar/internal/asset"
	"github.com/normanking/guardavatar/internal/frameclock"
)

// ActionPose is one blended action in a pose frame.
type ActionPose struct {
	Clip     string  `json:"clip"`
	Time     float64 `json:"time"`
	Weight   float32 `json:"weight"`
	Loop     string  `json:"loop"`
	Finished bool    `json:"finished,omitempty"`
	Current  bool    `json:"current,omitempty"`
}

// Pose is what a client needs to mirror the avatar for one frame.
type Pose struct {
	Frame    uint64       `json:"frame"`
	Elapsed  float64      `json:"elapsed"`
	Position [3]float32   `json:"position"`
	Scale    float32      `json:"scale"`
	Matrix   [16]float32  `json:"matrix"` // column-major root transform
	Actions  []ActionPose `json:"actions"`
}

// PoseSource reports the root transform and running actions, or false when no
// avatar is loaded.
type PoseSource func() (asset.Transform, []animation.ActionState, bool)

// NewPose converts controller state into a wire pose.
func NewPose(f frameclock.Frame, root asset.Transform, actions []animation.ActionState) Pose {
	p := Pose{
		Frame:    f.Index,
		Elapsed:  f.Elapsed.Seconds(),
		Position: [3]float32{root.Position[0], root.Position[1], root.Position[2]},
		Scale:    root.Scale,
		Matrix:   root.Matrix(),
		Actions:  make([]ActionPose, 0, len(actions)),
	}
	for _, a := range actions {
		p.Actions = append(p.Actions, ActionPose{
			Clip:     a.Clip,
			Time:     a.Time.Seconds(),
			Weight:   a.Weight,
			Loop:     a.Loop.String(),
			Finished: a.Finished,
			Current:  a.Current,
		})
	}
	return p
}

// PoseRenderer is a frameclock.Renderer that streams poses to clients every
// Nth frame.
type PoseRenderer struct {
	hub    *Hub
	source PoseSource
	every  uint64
	sent   atomic.Uint64
}

func NewPoseRenderer(hub *Hub, source PoseSource, every int) *PoseRenderer {
	if every <= 0 {
		every = 1
	}
	return &PoseRenderer{hub: hub, source: source, every: uint64(every)}
}

func (r *PoseRenderer) Render(f frameclock.Frame) {
	if f.Index%r.every != 0 || r.hub.Clients() == 0 {
		return
	}
	root, actions, ok := r.source()
	if !ok {
		return
	}
	if r.hub.Broadcast(Message{Type: MsgPose, Data: NewPose(f, root, actions)}) > 0 {
		r.sent.Add(1)
	}
}

// Sent returns how many pose frames reached at least one client.
func (r *PoseRenderer) Sent() uint64 {
	return r.sent.Load()
}
