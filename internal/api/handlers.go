package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetbook/internal/models"
	"fleetbook/internal/service"
)

type tripDetailsRequest struct {
	Department        string    `json:"department"`
	Purpose           string    `json:"purpose"`
	PassengerCount    int       `json:"passenger_count"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	PickupPoint       string    `json:"pickup_point"`
	DropoffPoint      string    `json:"dropoff_point"`
	VehiclePreference string    `json:"vehicle_preference"`
}

func (r tripDetailsRequest) details() models.TripDetails {
	pref := models.VehiclePreference(r.VehiclePreference)
	if pref == "" {
		pref = models.PreferenceAny
	}
	return models.TripDetails{
		Department:        r.Department,
		Purpose:           r.Purpose,
		PassengerCount:    r.PassengerCount,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		PickupPoint:       r.PickupPoint,
		DropoffPoint:      r.DropoffPoint,
		VehiclePreference: pref,
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequesterID int64 `json:"requester_id"`
		tripDetailsRequest
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RequesterID == 0 {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}

	d := body.details()
	booking := &models.Booking{
		RequesterID:       body.RequesterID,
		Department:        d.Department,
		Purpose:           d.Purpose,
		PassengerCount:    d.PassengerCount,
		StartTime:         d.StartTime,
		EndTime:           d.EndTime,
		PickupPoint:       d.PickupPoint,
		DropoffPoint:      d.DropoffPoint,
		VehiclePreference: d.VehiclePreference,
	}
	if err := s.bookings.CreateDraft(r.Context(), booking); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body struct {
		Version int64 `json:"version"`
		tripDetailsRequest
	}
	if !decodeBody(w, r, &body) {
		return
	}
	booking, err := s.bookings.UpdateTrip(r.Context(), id, body.Version, body.details())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	if err := s.bookings.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body struct {
		Version     int64 `json:"version"`
		SubmittedBy int64 `json:"submitted_by"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	booking, err := s.bookings.Submit(r.Context(), id, body.Version, body.SubmittedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body struct {
		Version   int64  `json:"version"`
		Status    string `json:"status"`
		ChangedBy int64  `json:"changed_by"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	booking, err := s.bookings.Transition(r.Context(), id, body.Version, models.Status(body.Status), body.ChangedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body struct {
		Version    int64  `json:"version"`
		ApproverID int64  `json:"approver_id"`
		Decision   string `json:"decision"`
		Reason     string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	approver, err := s.users.GetUser(r.Context(), body.ApproverID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	approval, notification, err := s.approvals.Decide(r.Context(), id, body.Version, approver, models.Decision(body.Decision), body.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"approval":     approval,
		"notification": notification,
	})
}

func (s *HTTPServer) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	olderThan := time.Duration(0)
	if raw := r.URL.Query().Get("older_than_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			writeError(w, http.StatusBadRequest, "invalid older_than_hours")
			return
		}
		olderThan = time.Duration(hours) * time.Hour
	}

	pending, err := s.approvals.PendingRequests(r.Context(), olderThan)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

type assignmentRequest struct {
	Version    int64  `json:"version"`
	VehicleID  *int64 `json:"vehicle_id"`
	DriverID   *int64 `json:"driver_id"`
	AutoAssign *bool  `json:"auto_assign"`
	Notes      string `json:"notes"`
	ActorID    int64  `json:"actor_id"`
}

// assignmentInput maps the request body onto a service input. When the body
// leaves auto_assign unset, autoDefault decides the mode: creates default to
// auto resolution, updates to manual.
func (s *HTTPServer) assignmentInput(bookingID int64, body assignmentRequest, autoDefault bool) service.AssignmentInput {
	auto := autoDefault
	if body.AutoAssign != nil {
		auto = *body.AutoAssign
	}
	return service.AssignmentInput{
		BookingID:      bookingID,
		BookingVersion: body.Version,
		VehicleID:      body.VehicleID,
		DriverID:       body.DriverID,
		AutoAssign:     auto,
		Notes:          body.Notes,
		AssignedBy:     body.ActorID,
	}
}

func (s *HTTPServer) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body assignmentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	actor, err := s.users.GetUser(r.Context(), body.ActorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	assignment, change, err := s.assignments.Create(r.Context(), s.assignmentInput(id, body, true), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"assignment": assignment,
		"change":     change,
	})
}

func (s *HTTPServer) handleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body assignmentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	actor, err := s.users.GetUser(r.Context(), body.ActorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	assignment, change, err := s.assignments.Update(r.Context(), s.assignmentInput(id, body, false), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assignment": assignment,
		"change":     change,
	})
}

func (s *HTTPServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	suggestions, err := s.assignments.Suggest(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *HTTPServer) handleAssignmentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	history, err := s.assignments.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func parseWindow(r *http.Request) (models.Window, bool) {
	start, errStart := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	end, errEnd := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if errStart != nil || errEnd != nil {
		return models.Window{}, false
	}
	return models.Window{Start: start, End: end}, true
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	resource := models.ResourceType(r.URL.Query().Get("resource"))
	resourceID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if !resource.Valid() || err != nil || resourceID < 1 {
		writeError(w, http.StatusBadRequest, "resource and id are required")
		return
	}
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "start and end must be RFC3339 timestamps")
		return
	}
	var exclude int64
	if raw := r.URL.Query().Get("exclude_booking_id"); raw != "" {
		exclude, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid exclude_booking_id")
			return
		}
	}

	var available bool
	if resource == models.ResourceVehicle {
		available, err = s.availability.IsVehicleAvailable(r.Context(), resourceID, window, exclude)
	} else {
		available, err = s.availability.IsDriverAvailable(r.Context(), resourceID, window, exclude)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conflicts, err := s.availability.Conflicts(r.Context(), resource, resourceID, window, exclude)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": available,
		"conflicts": conflicts,
	})
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	resource := models.ResourceType(r.URL.Query().Get("resource"))
	if !resource.Valid() {
		writeError(w, http.StatusBadRequest, "resource is required")
		return
	}
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "start and end must be RFC3339 timestamps")
		return
	}

	var ids []int64
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid ids")
				return
			}
			ids = append(ids, id)
		}
	}

	calendars, err := s.calendar.BuildCalendarView(r.Context(), resource, window, ids)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendars": calendars})
}

func (s *HTTPServer) handleCreateBlockingEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResourceType string    `json:"resource_type"`
		ResourceID   int64     `json:"resource_id"`
		Kind         string    `json:"kind"`
		Title        string    `json:"title"`
		Start        time.Time `json:"start"`
		End          time.Time `json:"end"`
		ActorID      int64     `json:"actor_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	actor, err := s.users.GetUser(r.Context(), body.ActorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	event := &models.BlockingEvent{
		ResourceType: models.ResourceType(body.ResourceType),
		ResourceID:   body.ResourceID,
		Kind:         models.EventKind(body.Kind),
		Title:        body.Title,
		Start:        body.Start,
		End:          body.End,
	}
	if err := s.calendar.AddBlockingEvent(r.Context(), event, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *HTTPServer) handleExportSchedule(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are not configured")
		return
	}
	var body struct {
		Resource  string `json:"resource"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	resource := models.ResourceType(body.Resource)
	startDate, errStart := time.Parse("2006-01-02", body.StartDate)
	endDate, errEnd := time.Parse("2006-01-02", body.EndDate)
	if !resource.Valid() || errStart != nil || errEnd != nil {
		writeError(w, http.StatusBadRequest, "resource, start_date and end_date are required")
		return
	}

	filePath, err := s.exporter.ScheduleWorkbook(r.Context(), resource, startDate, endDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file_path": filePath})
}

func (s *HTTPServer) handleDeleteBlockingEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var body struct {
		ActorID int64 `json:"actor_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	actor, err := s.users.GetUser(r.Context(), body.ActorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.calendar.RemoveBlockingEvent(r.Context(), id, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
