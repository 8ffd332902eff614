// Package notify carries advisory messages (progress, success, failures)
// from an editor session to whoever shows them to the user.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/sse"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

type Notification struct {
	Session string    `json:"session"`
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Notifier is purely advisory: nothing it returns is consumed.
type Notifier interface {
	Notify(n Notification)
}

type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Log writes notifications to a zerolog logger.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(n Notification) {
	ev := l.Logger.Info()
	switch n.Level {
	case Warning:
		ev = l.Logger.Warn()
	case Error:
		ev = l.Logger.Error()
	}
	ev.Str("session", n.Session).Str("notification_level", string(n.Level)).Str("title", n.Title).Str("message", n.Message).Msg("Notification")
}

// SSE broadcasts notifications as JSON to the event stream of their session.
type SSE struct {
	Clients *sse.SSEClients
}

func (s SSE) Notify(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	s.Clients.Broadcast(n.Session, string(data))
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.list = append(r.list, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}

// Levels lists the levels received, in order.
func (r *Recorder) Levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, len(r.list))
	for i, n := range r.list {
		out[i] = n.Level
	}
	return out
}
