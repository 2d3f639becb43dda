package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kigalimart/storefront/internal/notifications"
)

// Subscriber delivers live notifications for an audience until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, a notifications.Audience) (<-chan []byte, error)
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func audience(r *http.Request) notifications.Audience {
	id := identity(r)
	return notifications.Audience{UserID: id.UserID, Role: id.Role}
}

func (s *Server) mountNotifications(r chi.Router) {
	r.Get("/notifications", s.listNotifications)
	r.Get("/notifications/unread-count", s.unreadCount)
	r.Post("/notifications/read-all", s.markAllRead)
	r.Post("/notifications/{id}/read", s.markRead)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.Notifications.List(r.Context(), audience(r), notifications.ListFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      queryInt(r, "limit", 30),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.Notifications.UnreadCount(r.Context(), audience(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.Notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), audience(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.Notifications.MarkAllRead(r.Context(), audience(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// stream pushes notifications addressed to the caller over a websocket.
// The first frame carries the unread count so clients can sync badges.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	a := audience(r)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, err := s.Stream.Subscribe(ctx, a)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	unread, err := s.Notifications.UnreadCount(ctx, a)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("ws upgrade failed", "user_id", a.UserID, "error", err)
		return
	}
	defer conn.Close()

	// reader: only pongs and close frames are expected
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(map[string]int{"unread": unread}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case msg, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.Log.Debug("ws write failed", "user_id", a.UserID, "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
