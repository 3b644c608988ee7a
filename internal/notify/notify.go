// Package notify delivers alarm and timer alerts to the desktop. Delivery
// runs off the loop and never reports failure back to the caller.
package notify

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sourcegraph/conc"
)

type Message struct {
	Title   string
	Body    string
	Urgent  bool
	Sound   string
	Volume  float64
	Timeout time.Duration
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

type Player interface {
	Play(ctx context.Context, sound string, volume float64) error
}

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = "/org/freedesktop/Notifications"
	busNotify = busName + ".Notify"
	appName   = "tickwise"
)

// DBusNotifier posts freedesktop notifications on the session bus.
type DBusNotifier struct {
	conn *dbus.Conn
}

func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBusNotifier{conn: conn}, nil
}

func (n *DBusNotifier) Notify(ctx context.Context, m Message) error {
	urgency := byte(1)
	if m.Urgent {
		urgency = 2
	}
	hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgency)}
	timeout := int32(-1)
	if m.Timeout > 0 {
		timeout = int32(m.Timeout / time.Millisecond)
	}
	obj := n.conn.Object(busName, dbus.ObjectPath(busPath))
	call := obj.CallWithContext(ctx, busNotify, 0, appName, uint32(0), "alarm-clock", m.Title, m.Body, []string{}, hints, timeout)
	if call.Err != nil {
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}
	return nil
}

func (n *DBusNotifier) Close() error {
	return n.conn.Close()
}

// LogNotifier writes notifications to the log. Used when no session bus
// is reachable or notifications are turned off.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, m Message) error {
	log.Printf("Notification: %s: %s", m.Title, m.Body)
	return nil
}

// CommandPlayer plays a sound file through an external command such as
// paplay. An empty sound is silent.
type CommandPlayer struct {
	Command string
}

func (p CommandPlayer) Play(ctx context.Context, sound string, volume float64) error {
	if p.Command == "" || sound == "" {
		return nil
	}
	args := []string{sound}
	if p.Command == "paplay" {
		// paplay volume is linear, 65536 = 100%.
		args = []string{"--volume=" + strconv.Itoa(int(volume*65536)), sound}
	}
	cmd := exec.CommandContext(ctx, p.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to play %s with %s: %w (%s)", sound, p.Command, err, out)
	}
	return nil
}

// Channel fans a message out to the notifier and player on background
// goroutines.
type Channel struct {
	Notifier Notifier
	Player   Player
	// PlayTimeout bounds a single playback.
	PlayTimeout time.Duration

	wg conc.WaitGroup
}

// Deliver returns immediately. Errors are logged.
func (c *Channel) Deliver(m Message) {
	if c.Notifier != nil {
		c.wg.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Notifier.Notify(ctx, m); err != nil {
				log.Printf("Warning: notification failed: %v", err)
			}
		})
	}
	if c.Player != nil && m.Sound != "" {
		c.wg.Go(func() {
			timeout := c.PlayTimeout
			if timeout <= 0 {
				timeout = time.Minute
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := c.Player.Play(ctx, m.Sound, m.Volume); err != nil {
				log.Printf("Warning: sound playback failed: %v", err)
			}
		})
	}
}

// Wait blocks until every delivery has finished. A panicking notifier is
// re-raised here.
func (c *Channel) Wait() {
	c.wg.Wait()
}
