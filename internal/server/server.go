// ABOUTME: Thin HTTP JSON boundary in front of the controller and view
// ABOUTME: A closed set of operation kinds dispatched by one exhaustive switch

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/auth"
	"github.com/2389/fold-chat/internal/controller"
	"github.com/2389/fold-chat/internal/engine"
	"github.com/2389/fold-chat/internal/view"
)

// Op is the closed set of request kinds the boundary accepts. The
// dispatch switch below handles every member; an unknown op is a 400.
type Op string

// Operation kinds.
const (
	OpListUsers          Op = "list_users"
	OpListConversations  Op = "list_conversations"
	OpGetPayloads        Op = "get_payloads"
	OpGetMessages        Op = "get_messages"
	OpGetAdmins          Op = "get_admins"
	OpGetPendingAdmins   Op = "get_pending_admins"
	OpIsOwner            Op = "is_owner"
	OpIsMember           Op = "is_member"
	OpServerInfo         Op = "server_info"
	OpNewUser            Op = "new_user"
	OpNewConversation    Op = "new_conversation"
	OpNewMessage         Op = "new_message"
	OpDeleteUser         Op = "delete_user"
	OpDeleteConversation Op = "delete_conversation"
	OpGrantAdmin         Op = "grant_admin"
	OpRevokeAdmin        Op = "revoke_admin"
	OpSetPassword        Op = "set_password"
	OpAuthenticate       Op = "authenticate"
	OpWatchUser          Op = "watch_user"
	OpUnwatchUser        Op = "unwatch_user"
	OpWatchConversation  Op = "watch_conversation"
	OpUnwatchConv        Op = "unwatch_conversation"
	OpUserUpdate         Op = "user_update"
	OpConversationUpdate Op = "conversation_update"
	OpFlush              Op = "flush"
	OpWipe               Op = "wipe"
)

// request is the JSON envelope for every op. Fields are used or
// ignored per op kind.
type request struct {
	Op           Op       `json:"op"`
	Name         string   `json:"name,omitempty"`
	Title        string   `json:"title,omitempty"`
	Body         string   `json:"body,omitempty"`
	Password     string   `json:"password,omitempty"`
	User         string   `json:"user,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	Author       string   `json:"author,omitempty"`
	Conversation string   `json:"conversation,omitempty"`
	IDs          []string `json:"ids,omitempty"`
}

// response carries either a result or ok=false; failed operations are
// not HTTP errors, mirroring the null-on-failure contract.
type response struct {
	OK     bool `json:"ok"`
	Result any  `json:"result,omitempty"`
}

// Server binds the operation set to the run loop.
type Server struct {
	engine     *engine.Engine
	controller *controller.Controller
	view       *view.View
	tokens     *auth.TokenIssuer
	logger     *slog.Logger
}

// New creates the HTTP boundary. tokens may be nil, which disables the
// admin-only ops. Pass nil logger for the default.
func New(eng *engine.Engine, ctrl *controller.Controller, v *view.View, tokens *auth.TokenIssuer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:     eng,
		controller: ctrl,
		view:       v,
		tokens:     tokens,
		logger:     logger.With("component", "server"),
	}
}

// Handler returns the http.Handler for the boundary.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rpc", s.handleRPC)
	mux.HandleFunc("GET /v1/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if adminOnly(req.Op) && !s.isAdminRequest(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var resp response
	var known bool
	err := s.engine.Do(r.Context(), func() {
		resp, known = s.dispatch(req)
	})
	if err != nil {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if !known {
		http.Error(w, "unknown op", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("response encode failed", "op", req.Op, "error", err)
	}
}

func adminOnly(op Op) bool {
	switch op {
	case OpGrantAdmin, OpRevokeAdmin, OpWipe:
		return true
	default:
		return false
	}
}

// isAdminRequest verifies the bearer token and checks admin status.
// The status check runs as its own unit of run-loop work, ahead of the
// op itself; a concurrent revoke can slip between the two, which is
// acceptable at a polling boundary.
func (s *Server) isAdminRequest(r *http.Request) bool {
	if s.tokens == nil {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Warn("token rejected", "error", err)
		return false
	}
	isAdmin := false
	if err := s.engine.Do(r.Context(), func() {
		isAdmin = s.view.IsAdmin(id)
	}); err != nil {
		return false
	}
	return isAdmin
}

// dispatch runs one operation on the run loop. It returns the response
// and whether the op was recognized.
func (s *Server) dispatch(req request) (response, bool) {
	switch req.Op {
	case OpListUsers:
		return ok(usersDTO(s.view.Users())), true
	case OpListConversations:
		return ok(conversationsDTO(s.view.Conversations())), true
	case OpGetPayloads:
		ids, err := parseIDs(req.IDs)
		if err != nil {
			return fail(), true
		}
		return ok(payloadsDTO(s.view.Payloads(ids))), true
	case OpGetMessages:
		ids, err := parseIDs(req.IDs)
		if err != nil {
			return fail(), true
		}
		return ok(messagesDTO(s.view.Messages(ids))), true
	case OpGetAdmins:
		return ok(idsDTO(s.view.Admins())), true
	case OpGetPendingAdmins:
		return ok(idsDTO(s.view.PendingAdmins())), true
	case OpIsOwner:
		conv, err1 := uuid.Parse(req.Conversation)
		user, err2 := uuid.Parse(req.User)
		if err1 != nil || err2 != nil {
			return fail(), true
		}
		return ok(s.view.IsOwner(conv, user)), true
	case OpIsMember:
		conv, err1 := uuid.Parse(req.Conversation)
		user, err2 := uuid.Parse(req.User)
		if err1 != nil || err2 != nil {
			return fail(), true
		}
		return ok(s.view.IsMember(conv, user)), true
	case OpServerInfo:
		info := s.view.Info()
		return ok(map[string]any{
			"version":   info.Version,
			"uptime_ms": s.view.Uptime().Milliseconds(),
		}), true

	case OpNewUser:
		u := s.controller.NewUser(req.Name)
		if u == nil {
			return fail(), true
		}
		return ok(userDTO(u)), true
	case OpNewConversation:
		owner, err := uuid.Parse(req.Owner)
		if err != nil {
			return fail(), true
		}
		c := s.controller.NewConversation(req.Title, owner)
		if c == nil {
			return fail(), true
		}
		return ok(conversationDTO(c)), true
	case OpNewMessage:
		author, err1 := uuid.Parse(req.Author)
		conv, err2 := uuid.Parse(req.Conversation)
		if err1 != nil || err2 != nil {
			return fail(), true
		}
		m := s.controller.NewMessage(author, conv, req.Body)
		if m == nil {
			return fail(), true
		}
		return ok(messageDTO(m)), true
	case OpDeleteUser:
		id, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.DeleteUser(id)), true
	case OpDeleteConversation:
		id, err := uuid.Parse(req.Conversation)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.DeleteConversation(id)), true
	case OpGrantAdmin:
		return boolResult(s.controller.GrantAdmin(req.Name)), true
	case OpRevokeAdmin:
		return boolResult(s.controller.RevokeAdmin(req.Name)), true
	case OpSetPassword:
		id, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.SetPassword(id, req.Password)), true
	case OpAuthenticate:
		id, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		token, authed := s.controller.Authenticate(id, req.Password)
		if !authed {
			return fail(), true
		}
		return ok(map[string]string{"token": token}), true

	case OpWatchUser:
		watcher, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.WatchUser(req.Name, watcher)), true
	case OpUnwatchUser:
		watcher, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.UnwatchUser(req.Name, watcher)), true
	case OpWatchConversation:
		watcher, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.WatchConversation(req.Title, watcher)), true
	case OpUnwatchConv:
		watcher, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return boolResult(s.controller.UnwatchConversation(req.Title, watcher)), true
	case OpUserUpdate:
		owner, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return ok(conversationsDTO(s.view.UserUpdate(owner, req.Name))), true
	case OpConversationUpdate:
		owner, err := uuid.Parse(req.User)
		if err != nil {
			return fail(), true
		}
		return ok(s.view.ConversationUpdate(owner, req.Title)), true

	case OpFlush:
		if err := s.controller.Flush(); err != nil {
			s.logger.Error("flush failed", "error", err)
			return fail(), true
		}
		return ok(true), true
	case OpWipe:
		if err := s.controller.Wipe(); err != nil {
			s.logger.Error("wipe failed", "error", err)
			return fail(), true
		}
		return ok(true), true
	}
	return response{}, false
}

func ok(result any) response {
	return response{OK: true, Result: result}
}

func fail() response {
	return response{OK: false}
}

func boolResult(b bool) response {
	if !b {
		return fail()
	}
	return ok(true)
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
