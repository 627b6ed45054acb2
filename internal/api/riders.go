package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pizza-tracker/internal/domain"
)

type createRiderRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *Handler) CreateRider(w http.ResponseWriter, r *http.Request) {
	var req createRiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeProblem(w, http.StatusBadRequest, "bad_json", "rider name is required")
		return
	}
	rider, err := h.svc.CreateRider(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rider)
}

func (h *Handler) ListRiders(w http.ResponseWriter, r *http.Request) {
	riders, err := h.svc.ListRiders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"riders": riders})
}

func (h *Handler) GetRider(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid rider id")
		return
	}
	rider, err := h.svc.GetRider(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rider)
}

type riderStatusRequest struct {
	Status domain.RiderStatus `json:"status"`
}

// SetRiderStatus flips a rider between online and offline. Busy is
// owned by the assignment flow and rejected here.
func (h *Handler) SetRiderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid rider id")
		return
	}
	var req riderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	rider, err := h.svc.SetRiderStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rider)
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid rider id")
		return
	}
	assignments, err := h.svc.ListAssignments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

type advanceAssignmentRequest struct {
	State domain.AssignmentState `json:"state"`
}

func (h *Handler) AdvanceAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid assignment id")
		return
	}
	var req advanceAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	a, err := h.svc.AdvanceAssignment(r.Context(), id, req.State)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
