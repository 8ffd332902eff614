// Package sse fans editor notifications out to Server-Sent Events streams.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/config"
)

var sseLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sseLogger = l
}

// Client receives the messages broadcast to its topic, an editor session id.
type Client struct {
	Msg   chan string
	Topic string
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

// Broadcast sends msg to every client of topic without blocking; slow
// clients miss the message.
func (s *SSEClients) Broadcast(topic string, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Topic == topic {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Stream serves the events of topic until the request is done.
func (s *SSEClients) Stream(w http.ResponseWriter, r *http.Request, topic string) {
	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &Client{
		Msg:   make(chan string, 8),
		Topic: topic,
	}
	s.Add(client)
	sseLogger.Debug().Str("topic", topic).Msg("SSE client connected")

	defer func() {
		s.Delete(client)
		sseLogger.Debug().Str("topic", topic).Msg("SSE client disconnected")
	}()

	done := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}
