package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

type recordingPlayer struct {
	mu     sync.Mutex
	sounds []string
}

func (r *recordingPlayer) Play(_ context.Context, sound string, _ float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sounds = append(r.sounds, sound)
	return errors.New("no audio device")
}

func TestChannelDeliversToBoth(t *testing.T) {
	n := &recordingNotifier{}
	p := &recordingPlayer{}
	c := &Channel{Notifier: n, Player: p}

	c.Deliver(Message{Title: "Alarm", Body: "wake", Sound: "/usr/share/sounds/bell.oga", Volume: 0.5})
	c.Deliver(Message{Title: "Timer", Body: "break"})
	c.Wait()

	assert.Len(t, n.msgs, 2)
	assert.Equal(t, []string{"/usr/share/sounds/bell.oga"}, p.sounds)
}

func TestChannelSwallowsErrors(t *testing.T) {
	n := &recordingNotifier{err: errors.New("bus gone")}
	c := &Channel{Notifier: n}
	c.Deliver(Message{Title: "x"})
	c.Wait()
	assert.Len(t, n.msgs, 1)
}

func TestCommandPlayerSilentWithoutSound(t *testing.T) {
	assert.NoError(t, CommandPlayer{Command: "paplay"}.Play(context.Background(), "", 1))
	assert.NoError(t, CommandPlayer{}.Play(context.Background(), "bell.oga", 1))
}

func TestCommandPlayerReportsFailure(t *testing.T) {
	err := CommandPlayer{Command: "tickwise-no-such-player"}.Play(context.Background(), "bell.oga", 1)
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), Message{Title: "t", Body: "b"}))
}
