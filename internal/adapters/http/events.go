package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/go-chi/chi/v5"
)

// eventBuffer bounds the batches queued for a slow client. Batches beyond it are dropped
// and the client is told to resynchronize.
const eventBuffer = 64

// events streams the batches of a session as server-sent events.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "id")

	batches := make(chan domain.Batch, eventBuffer)
	lost := make(chan struct{}, 1)
	var cancel func()
	err := s.manager.Update(r.Context(), id, func(sess *session.Session) error {
		cancel = sess.Subscribe(func(b domain.Batch) {
			select {
			case batches <- b:
			default:
				select {
				case lost <- struct{}{}:
				default:
				}
			}
		})
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() {
		// The session may be closed by now; nothing left to cancel then.
		_ = s.manager.Update(context.Background(), id, func(*session.Session) error {
			cancel()
			return nil
		})
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, sseEvent("ping", []byte("connected")))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-lost:
			fmt.Fprint(w, sseEvent("overflow", []byte(id)))
			flusher.Flush()
		case b := <-batches:
			data, err := json.Marshal(b)
			if err != nil {
				s.logger.Warn("failed to encode batch", "session", id, "error", err)
				continue
			}
			fmt.Fprint(w, sseEvent("batch", data))
			flusher.Flush()
		}
	}
}
