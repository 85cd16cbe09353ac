// Package avatar3d holds the Avatar aggregate: the normalized character asset
// and the animation controller that owns its current action.
package avatar3d

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/animation"
	"github.com/normanking/guardavatar/internal/asset"
)

type AvatarID string

const DefaultAvatarID AvatarID = "agent"

// Avatar is created once per successful asset load. The current action is
// reachable only through Play.
type Avatar struct {
	ID AvatarID

	asset      *asset.CharacterAsset
	controller *animation.Controller
}

// NewAvatar wires a loaded asset to a fresh animation controller.
func NewAvatar(id AvatarID, a *asset.CharacterAsset, opts animation.Options, logger zerolog.Logger) *Avatar {
	if id == "" {
		id = DefaultAvatarID
	}
	logger = logger.With().Str("avatar", string(id)).Logger()
	return &Avatar{
		ID:         id,
		asset:      a,
		controller: animation.NewController(a.Clips, opts, logger),
	}
}

// Play requests a clip by name. See animation.Controller.Play.
func (a *Avatar) Play(name string, loop bool) error {
	return a.controller.Play(name, loop)
}

// Update advances the avatar's animation by dt.
func (a *Avatar) Update(dt time.Duration) {
	a.controller.Update(dt)
}

func (a *Avatar) Current() (animation.ActionState, bool) {
	return a.controller.Current()
}

func (a *Avatar) Pose() []animation.ActionState {
	return a.controller.Pose()
}

func (a *Avatar) Clips() []animation.Clip {
	return a.controller.Clips()
}

// Crossfade returns the blend window used between gestures.
func (a *Avatar) Crossfade() time.Duration {
	return a.controller.Crossfade()
}

func (a *Avatar) OnFinished(fn animation.FinishedFunc) {
	a.controller.OnFinished(fn)
}

func (a *Avatar) Asset() *asset.CharacterAsset {
	return a.asset
}

func (a *Avatar) Root() asset.Transform {
	return a.asset.Root
}

// SetRoot adjusts framing. Geometry is untouched.
func (a *Avatar) SetRoot(t asset.Transform) {
	a.asset.SetRoot(t)
}
