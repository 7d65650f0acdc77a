package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

// complianceView is a record with the violations stored against it.
type complianceView struct {
	*compliance.Record
	Violations []compliance.FeatureViolation `json:"violations"`
}

type historyResponse struct {
	DeviceID int64               `json:"device_id"`
	Records  []compliance.Record `json:"records"`
}

type violationsResponse struct {
	RecordID   int64                         `json:"record_id"`
	Violations []compliance.FeatureViolation `json:"violations"`
}

type summaryResponse struct {
	compliance.Summary
	Total int `json:"total"`
}

// pathID parses a numeric URL parameter. Sign checks are left to the
// compliance stores.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.monitor.Summary(r.Context())
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: sum, Total: sum.Total()})
}

// handleGetCompliance returns the device's most recent record across all
// policies, with its violations.
func (s *Server) handleGetCompliance(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathID(r, "deviceID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rec, err := s.monitor.GetCompliance(r.Context(), deviceID)
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	s.writeRecord(w, r, rec)
}

// handleGetCurrent returns the most recent record for one policy.
func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathID(r, "deviceID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	policyID, err := pathID(r, "policyID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rec, err := s.monitor.GetCurrent(r.Context(), deviceID, policyID)
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	s.writeRecord(w, r, rec)
}

func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, rec *compliance.Record) {
	violations, err := s.monitor.GetViolations(r.Context(), rec.ID)
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complianceView{Record: rec, Violations: violations})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathID(r, "deviceID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}

	records, err := s.monitor.History(r.Context(), deviceID, limit)
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{DeviceID: deviceID, Records: records})
}

func (s *Server) handleGetAttempts(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathID(r, "deviceID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	counter, err := s.monitor.AttemptCounter(r.Context(), deviceID)
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counter)
}

func (s *Server) handleGetViolations(w http.ResponseWriter, r *http.Request) {
	recordID, err := pathID(r, "recordID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	violations, err := s.monitor.GetViolations(r.Context(), recordID)
	if err != nil {
		s.writeComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, violationsResponse{RecordID: recordID, Violations: violations})
}
