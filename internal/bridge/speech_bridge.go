package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/speech"
	"github.com/normanking/guardavatar/internal/tts"
)

// ErrNoClient is returned when there is no connected client to speak through.
var ErrNoClient = errors.New("no bridge client connected")

// RemoteSpeech is a speech.Engine backed by the browser's speech synthesis.
// Each utterance is sent as a speak message and completes when a client
// answers with speech_end carrying the same id. It is also a speech.Player
// that ships synthesized audio to clients the same way.
type RemoteSpeech struct {
	hub    *Hub
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]*speech.Utterance
}

func NewRemoteSpeech(hub *Hub, logger zerolog.Logger) *RemoteSpeech {
	r := &RemoteSpeech{
		hub:     hub,
		logger:  logger.With().Str("component", "speech").Str("engine", "browser").Logger(),
		pending: make(map[string]*speech.Utterance),
	}
	hub.OnMessage(MsgSpeechEnd, r.handleEnd)
	return r
}

func (r *RemoteSpeech) Speak(ctx context.Context, text string) (*speech.Utterance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyUtterance
	}
	if r.hub.Clients() == 0 {
		return nil, ErrNoClient
	}

	u := speech.NewUtterance(text)
	if err := r.send(ctx, u, Message{Type: MsgSpeak, ID: u.ID, Text: text}); err != nil {
		return nil, err
	}
	return u, nil
}

// AudioClip is the payload of an audio message. Audio is base64 in JSON.
type AudioClip struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Audio      []byte `json:"audio"`
}

// Play sends synthesized audio to clients and blocks until one reports
// speech_end for it or ctx is done.
func (r *RemoteSpeech) Play(ctx context.Context, text string, audio *tts.SynthesizeResponse) error {
	if r.hub.Clients() == 0 {
		return ErrNoClient
	}

	u := speech.NewUtterance(text)
	err := r.send(ctx, u, Message{
		Type: MsgAudio,
		ID:   u.ID,
		Text: text,
		Data: AudioClip{
			Format:     audio.Format,
			SampleRate: audio.SampleRate,
			Voice:      audio.VoiceID,
			Audio:      audio.Audio,
		},
	})
	if err != nil {
		return err
	}
	r.logger.Debug().Str("utterance", u.ID).Int("audioBytes", len(audio.Audio)).Msg("Audio sent")
	return u.Wait(ctx)
}

// send registers u as pending and broadcasts msg. u is completed with the
// ctx error if ctx ends before a client answers.
func (r *RemoteSpeech) send(ctx context.Context, u *speech.Utterance, msg Message) error {
	r.mu.Lock()
	r.pending[u.ID] = u
	r.mu.Unlock()

	if r.hub.Broadcast(msg) == 0 {
		r.forget(u.ID)
		return ErrNoClient
	}

	go func() {
		select {
		case <-u.Done():
		case <-ctx.Done():
			if r.forget(u.ID) {
				u.Complete(ctx.Err())
			}
		}
	}()
	return nil
}

func (r *RemoteSpeech) handleEnd(clientID string, msg Message) {
	r.mu.Lock()
	u, ok := r.pending[msg.ID]
	delete(r.pending, msg.ID)
	r.mu.Unlock()

	if !ok {
		r.logger.Debug().Str("client", clientID).Str("utterance", msg.ID).Msg("speech_end for unknown utterance")
		return
	}

	var err error
	if msg.Error != "" {
		err = errors.New(msg.Error)
	}
	u.Complete(err)
}

// forget drops a pending utterance and reports whether it was still pending.
func (r *RemoteSpeech) forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	delete(r.pending, id)
	return ok
}

// Pending returns the number of utterances awaiting speech_end.
func (r *RemoteSpeech) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
