package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const (
	maxDecodeErrorsPerConn = 5
	maxPostIDLength        = 64
)

type postPayload struct {
	PostID string `json:"post_id"`
}

type connectedPayload struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Server atiende el canal realtime. La autenticación corre sobre la request
// HTTP antes del upgrade; una conexión aceptada ya tiene usuario.
type Server struct {
	logger  *zap.Logger
	gate    *Gate
	hub     *Hub
	origins map[string]struct{}
	ws      websocket.Server
}

func NewServer(logger *zap.Logger, gate *Gate, hub *Hub, allowedOrigins []string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:  logger,
		gate:    gate,
		hub:     hub,
		origins: make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			s.origins[strings.ToLower(origin)] = struct{}{}
		}
	}
	s.ws = websocket.Server{Handshake: s.handshake, Handler: s.serveConn}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.gate.Authenticate(r.Context(), HandshakeFromRequest(r))
	if err != nil {
		reason := ReasonUnavailable
		var reject *RejectError
		if errors.As(err, &reject) {
			reason = reject.Reason
		}
		s.logger.Warn("realtime connection rejected",
			zap.String("reason", reason),
			zap.String("remote_addr", r.RemoteAddr),
		)
		status := http.StatusUnauthorized
		if reason == ReasonUnavailable {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, reason, status)
		return
	}

	s.ws.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
}

// handshake valida el Origin y elige el subprotocolo a devolver, evitando
// repetir la entrada que trae el token si el cliente ofreció otra.
func (s *Server) handshake(config *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return err
	}
	if len(s.origins) > 0 {
		if origin == nil {
			return errors.New("origin required")
		}
		key := strings.ToLower(origin.Scheme + "://" + origin.Host)
		if _, ok := s.origins[key]; !ok {
			return fmt.Errorf("origin %q not allowed", key)
		}
	}
	config.Origin = origin

	if len(config.Protocol) > 0 {
		chosen := config.Protocol[0]
		for _, p := range config.Protocol {
			if !strings.HasPrefix(p, AuthProtocolPrefix) {
				chosen = p
				break
			}
		}
		config.Protocol = []string{chosen}
	}
	return nil
}

func (s *Server) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	user, ok := UserFromContext(conn.Request().Context())
	if !ok {
		return
	}

	p := newPeer(conn, user.ID)
	s.hub.join(UserRoom(user.ID), p)
	defer s.hub.leaveAll(p)

	s.send(p, "connected", connectedPayload{UserID: user.ID, Name: user.Name, Role: string(user.Role)})
	s.logger.Info("realtime connected", zap.String("user_id", user.ID))

	decodeErrors := 0
	for {
		var ev Event
		if err := websocket.JSON.Receive(conn, &ev); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("realtime disconnected", zap.String("user_id", user.ID))
				return
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				s.logger.Warn("realtime read failed", zap.String("user_id", user.ID), zap.Error(err))
				return
			}
			decodeErrors++
			s.send(p, "error", errorPayload{Message: "invalid frame payload"})
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch ev.Name {
		case "join_post":
			postID, ok := s.postID(p, ev)
			if !ok {
				continue
			}
			s.hub.join(PostRoom(postID), p)
			s.send(p, "joined_post", postPayload{PostID: postID})
		case "leave_post":
			postID, ok := s.postID(p, ev)
			if !ok {
				continue
			}
			s.hub.leave(PostRoom(postID), p)
			s.send(p, "left_post", postPayload{PostID: postID})
		default:
			s.send(p, "error", errorPayload{Message: "unsupported event"})
		}
	}
}

func (s *Server) postID(p *peer, ev Event) (string, bool) {
	var payload postPayload
	if len(ev.Data) == 0 || json.Unmarshal(ev.Data, &payload) != nil {
		s.send(p, "error", errorPayload{Message: "invalid post payload"})
		return "", false
	}
	postID := strings.TrimSpace(payload.PostID)
	if postID == "" || len(postID) > maxPostIDLength {
		s.send(p, "error", errorPayload{Message: "post_id is required"})
		return "", false
	}
	return postID, true
}

func (s *Server) send(p *peer, name string, payload any) {
	ev, err := newEvent(name, payload)
	if err != nil {
		s.logger.Error("marshal realtime event failed", zap.String("event", name), zap.Error(err))
		return
	}
	if err := p.write(ev); err != nil {
		s.logger.Debug("realtime write failed", zap.String("user_id", p.userID), zap.Error(err))
	}
}
