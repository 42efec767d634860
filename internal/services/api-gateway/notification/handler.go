// Package notification exposes the scheduling API over HTTP/JSON.
package notification

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	domain "github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/user"
	"github.com/NordCoder/Vitalis/internal/obs"
	"github.com/NordCoder/Vitalis/internal/scheduling"
	"github.com/NordCoder/Vitalis/internal/services/api-gateway/auth"
	"github.com/NordCoder/Vitalis/internal/timezone"
)

type Service interface {
	Create(ctx context.Context, uid string, req scheduling.CreateRequest) (*domain.Notification, error)
	Get(ctx context.Context, uid string, id uuid.UUID) (*domain.Notification, error)
	List(ctx context.Context, uid string, q domain.ListQuery) (*domain.Page, error)
	Update(ctx context.Context, uid string, id uuid.UUID, p scheduling.Patch) (*domain.Notification, error)
	Action(ctx context.Context, uid string, id uuid.UUID, action string) (*domain.Notification, error)
}

type Server struct {
	log   *zap.Logger
	svc   Service
	codec runtime.Marshaler
}

func NewServer(log *zap.Logger, svc Service) *Server {
	return &Server{log: log, svc: svc, codec: &runtime.JSONBuiltin{}}
}

// Register mounts the routes on mux.
func (s *Server) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, pattern string
		h               runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/notifications", s.create},
		{http.MethodGet, "/v1/notifications", s.list},
		{http.MethodGet, "/v1/notifications/{id}", s.get},
		{http.MethodPatch, "/v1/notifications/{id}", s.update},
		{http.MethodPost, "/v1/notifications/{id}/action", s.action},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.h); err != nil {
			return err
		}
	}
	return nil
}

type createBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Repeat  string `json:"repeat"`
}

type patchBody struct {
	Message *string `json:"message"`
	Type    *string `json:"type"`
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	Repeat  *string `json:"repeat"`
}

type actionBody struct {
	Action string `json:"action"`
}

type errorBody struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("malformed request")

func (s *Server) create(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	uid, ok := s.userID(w, r)
	if !ok {
		return
	}
	var body createBody
	if err := s.codec.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, errBadRequest)
		return
	}
	repeat := domain.Repeat(body.Repeat)
	if repeat == "" {
		repeat = domain.RepeatNever
	}

	n, err := s.svc.Create(r.Context(), uid, scheduling.CreateRequest{
		Message: body.Message,
		Type:    domain.Type(body.Type),
		Date:    body.Date,
		Time:    body.Time,
		Repeat:  repeat,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	obs.WithTrace(r.Context(), s.log).Info("notification created",
		zap.String("uid", uid), zap.String("id", n.ID.String()), zap.Time("scheduled_at", n.ScheduledAt))
	s.write(w, http.StatusCreated, n)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	uid, ok := s.userID(w, r)
	if !ok {
		return
	}
	q := domain.ListQuery{}
	params := r.URL.Query()
	if v := params.Get("type"); v != "" {
		t := domain.Type(v)
		q.Type = &t
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.fail(w, r, errBadRequest)
			return
		}
		q.Limit = limit
	}
	if v := params.Get("cursor"); v != "" {
		cursor, err := uuid.Parse(v)
		if err != nil {
			s.fail(w, r, domain.ErrInvalidCursor)
			return
		}
		q.Cursor = &cursor
	}

	page, err := s.svc.List(r.Context(), uid, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, http.StatusOK, page)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	uid, id, ok := s.target(w, r, params)
	if !ok {
		return
	}
	n, err := s.svc.Get(r.Context(), uid, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, http.StatusOK, n)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, params map[string]string) {
	uid, id, ok := s.target(w, r, params)
	if !ok {
		return
	}
	var body patchBody
	if err := s.codec.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, errBadRequest)
		return
	}
	p := scheduling.Patch{Message: body.Message, Date: body.Date, Time: body.Time}
	if body.Type != nil {
		t := domain.Type(*body.Type)
		p.Type = &t
	}
	if body.Repeat != nil {
		rp := domain.Repeat(*body.Repeat)
		p.Repeat = &rp
	}

	n, err := s.svc.Update(r.Context(), uid, id, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, http.StatusOK, n)
}

func (s *Server) action(w http.ResponseWriter, r *http.Request, params map[string]string) {
	uid, id, ok := s.target(w, r, params)
	if !ok {
		return
	}
	var body actionBody
	if err := s.codec.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, errBadRequest)
		return
	}

	n, err := s.svc.Action(r.Context(), uid, id, body.Action)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	obs.WithTrace(r.Context(), s.log).Info("notification action",
		zap.String("uid", uid), zap.String("id", id.String()),
		zap.String("action", body.Action), zap.String("status", string(n.Status)))
	s.write(w, http.StatusOK, n)
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := auth.UserIDFromCtx(r.Context())
	if !ok {
		s.write(w, http.StatusUnauthorized, errorBody{Error: "auth required"})
	}
	return uid, ok
}

func (s *Server) target(w http.ResponseWriter, r *http.Request, params map[string]string) (string, uuid.UUID, bool) {
	uid, ok := s.userID(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(params["id"])
	if err != nil {
		s.fail(w, r, domain.ErrNotFound)
		return "", uuid.Nil, false
	}
	return uid, id, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		obs.WithTrace(r.Context(), s.log).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	s.write(w, code, errorBody{Error: msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrPastSchedule),
		errors.Is(err, domain.ErrInvalidSnooze),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTerminalState),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidRepeat),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, timezone.ErrInvalidTimezone),
		errors.Is(err, timezone.ErrInvalidDate),
		errors.Is(err, timezone.ErrInvalidTime):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", s.codec.ContentType(v))
	w.WriteHeader(code)
	if err := s.codec.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}
