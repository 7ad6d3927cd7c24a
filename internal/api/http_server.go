package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fleetbook/internal/database"
	"fleetbook/internal/export"
	"fleetbook/internal/models"
	"fleetbook/internal/service"
)

// HTTPServer exposes the booking core over a lightweight JSON API.
type HTTPServer struct {
	bookings     *service.BookingService
	approvals    *service.ApprovalService
	assignments  *service.AssignmentService
	availability *service.AvailabilityService
	calendar     *service.CalendarService
	exporter     *export.Exporter
	users        UserLoader
	server       *http.Server
	logger       *zerolog.Logger
}

// UserLoader resolves acting users for authorization checks.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

func NewHTTPServer(
	port int,
	bookings *service.BookingService,
	approvals *service.ApprovalService,
	assignments *service.AssignmentService,
	availability *service.AvailabilityService,
	calendar *service.CalendarService,
	exporter *export.Exporter,
	users UserLoader,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		bookings:     bookings,
		approvals:    approvals,
		assignments:  assignments,
		availability: availability,
		calendar:     calendar,
		exporter:     exporter,
		users:        users,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("PUT /api/v1/bookings/{id}", srv.handleUpdateBooking)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", srv.handleDeleteBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/submit", srv.handleSubmitBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/transition", srv.handleTransition)
	mux.HandleFunc("POST /api/v1/bookings/{id}/decision", srv.handleDecision)
	mux.HandleFunc("GET /api/v1/approvals/pending", srv.handlePendingApprovals)
	mux.HandleFunc("POST /api/v1/bookings/{id}/assignment", srv.handleCreateAssignment)
	mux.HandleFunc("PUT /api/v1/bookings/{id}/assignment", srv.handleUpdateAssignment)
	mux.HandleFunc("GET /api/v1/bookings/{id}/suggestions", srv.handleSuggestions)
	mux.HandleFunc("GET /api/v1/bookings/{id}/history", srv.handleAssignmentHistory)
	mux.HandleFunc("GET /api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("GET /api/v1/calendar", srv.handleCalendar)
	mux.HandleFunc("POST /api/v1/blocking-events", srv.handleCreateBlockingEvent)
	mux.HandleFunc("DELETE /api/v1/blocking-events/{id}", srv.handleDeleteBlockingEvent)
	mux.HandleFunc("POST /api/v1/exports/schedule", srv.handleExportSchedule)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrUnknownResource):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, database.ErrSelfApprovalForbidden):
		status = http.StatusForbidden
	case errors.Is(err, database.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, database.ErrDuplicateAssignment):
		status = http.StatusConflict
	case errors.Is(err, database.ErrIllegalTransition),
		errors.Is(err, database.ErrBookingNotEditable),
		errors.Is(err, database.ErrInvalidState),
		errors.Is(err, database.ErrIncompleteManualAssignment),
		errors.Is(err, database.ErrResourceUnavailable),
		errors.Is(err, database.ErrNoAvailableResource),
		errors.Is(err, database.ErrInvalidWindow),
		errors.Is(err, database.ErrPastWindow),
		errors.Is(err, database.ErrWindowTooFar):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err.Error())
}
