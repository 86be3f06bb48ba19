package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const writeWait = 5 * time.Second

// JobEvent is one frame of the watch feed.
type JobEvent struct {
	ID           string          `json:"id"`
	Status       types.JobStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func eventFor(j types.Job) JobEvent {
	return JobEvent{ID: j.ID, Status: j.Status, ErrorMessage: j.ErrorMessage, UpdatedAt: j.UpdatedAt}
}

// handleWatch streams a JobEvent whenever the job's status changes and closes the
// socket once the job is terminal.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	account, id := accountID(r), r.PathValue("id")
	job, err := s.ownedJob(r.Context(), account, id)
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log := s.log.WithJob(id, account)

	// Drain client frames so close messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(j types.Job) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(eventFor(j))
	}
	if err := send(job); err != nil {
		return
	}

	ticker := time.NewTicker(s.WatchInterval)
	defer ticker.Stop()
	last := job.Status
	for !last.Terminal() {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		job, err = s.Jobs.GetJob(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			closeWith(conn, websocket.CloseGoingAway, "job deleted")
			return
		}
		if err != nil {
			log.WithError(err).Warn("watch poll failed")
			continue
		}
		if job.Status == last {
			continue
		}
		last = job.Status
		if err := send(job); err != nil {
			return
		}
	}
	closeWith(conn, websocket.CloseNormalClosure, string(last))
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
