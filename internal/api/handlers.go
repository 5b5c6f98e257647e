package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"shophours/internal/db"
	"shophours/internal/export"
	"shophours/internal/hours"
	"shophours/internal/metrics"
)

// OverrideRequest is the body of POST /api/shops/{shop_id}/override.
type OverrideRequest struct {
	IsForcedOpen *bool  `json:"is_forced_open"`
	Reason       string `json:"reason,omitempty"`
}

// DayRequest is the body of PATCH /api/shops/{shop_id}/schedule/{day}.
// The day comes from the path.
type DayRequest struct {
	IsOpen      bool             `json:"is_open"`
	OpenTime    *hours.TimeOfDay `json:"open_time,omitempty"`
	CloseTime   *hours.TimeOfDay `json:"close_time,omitempty"`
	Is24Hours   bool             `json:"is_24_hours"`
	BreakStart  *hours.TimeOfDay `json:"break_start,omitempty"`
	BreakEnd    *hours.TimeOfDay `json:"break_end,omitempty"`
	SpecialNote string           `json:"special_note,omitempty"`
}

// BackendSchedule is the flat schedule shape selected with ?format=backend.
type BackendSchedule struct {
	TimeZone string             `json:"time_zone"`
	Days     []hours.BackendDay `json:"days"`
}

// PreviewResponse wraps the weekly preview.
type PreviewResponse struct {
	ShopID string             `json:"shop_id"`
	Days   []hours.DayPreview `json:"days"`
}

// GET /api/shops/{shop_id}/status
func (s *HTTPServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status")
	st, err := s.service.GetStatus(r.Context(), r.PathValue("shop_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/shops/{shop_id}/status/refresh
func (s *HTTPServer) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status_refresh")
	st, err := s.service.ForceRecompute(r.Context(), r.PathValue("shop_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/shops/{shop_id}/schedule?format=backend
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_get")
	ws, err := s.service.GetSchedule(r.Context(), r.PathValue("shop_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "backend" {
		writeJSON(w, http.StatusOK, BackendSchedule{TimeZone: ws.TimeZone, Days: hours.ToBackendFormat(ws)})
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// PUT /api/shops/{shop_id}/schedule?format=backend
func (s *HTTPServer) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_put")

	var ws hours.WeeklySchedule
	if r.URL.Query().Get("format") == "backend" {
		var req BackendSchedule
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		parsed, err := hours.FromBackendFormat(req.TimeZone, req.Days)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		ws = parsed
	} else if err := decodeJSON(w, r, &ws); err != nil {
		// Wrong day count or duplicate days surface as schedule errors.
		if errors.Is(err, hours.ErrInvalidSchedule) {
			s.writeServiceError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := s.service.PutSchedule(r.Context(), r.PathValue("shop_id"), ws, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// PATCH /api/shops/{shop_id}/schedule/{day}
func (s *HTTPServer) handleUpdateDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_day")
	day, err := hours.ParseDayOfWeek(r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown day; expected MONDAY..SUNDAY")
		return
	}

	var req DayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ws, err := s.service.UpdateDay(r.Context(), r.PathValue("shop_id"), hours.DaySchedule{
		Day:         day,
		IsOpen:      req.IsOpen,
		OpenTime:    req.OpenTime,
		CloseTime:   req.CloseTime,
		Is24Hours:   req.Is24Hours,
		BreakStart:  req.BreakStart,
		BreakEnd:    req.BreakEnd,
		SpecialNote: req.SpecialNote,
	}, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// GET /api/shops/{shop_id}/schedule/preview
func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_preview")
	shopID := r.PathValue("shop_id")
	days, err := s.service.GetWeeklyPreview(r.Context(), shopID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{ShopID: shopID, Days: days})
}

// GET /api/shops/{shop_id}/schedule/export.xlsx
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_export")
	ctx := r.Context()
	shopID := r.PathValue("shop_id")

	days, err := s.service.GetWeeklyPreview(ctx, shopID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	wb := export.Workbook{ShopID: shopID, Preview: days}

	// The status sheet is best effort; a broken evaluation must not block the export.
	if st, err := s.service.GetStatus(ctx, shopID); err == nil {
		wb.Status = &st
	} else {
		s.logger.Warn().Err(err).Str("shop_id", shopID).Msg("export without status")
	}

	if s.audit != nil {
		entries, err := s.audit.ListAudit(ctx, shopID, 100)
		if err != nil {
			s.logger.Warn().Err(err).Str("shop_id", shopID).Msg("export without history")
		}
		for _, e := range entries {
			wb.Audit = append(wb.Audit, export.AuditRow{At: e.CreatedAt, EventType: e.EventType, Actor: e.Actor, Detail: e.Payload})
		}
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, wb); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(shopID)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// POST /api/shops/{shop_id}/override
func (s *HTTPServer) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("override_set")
	var req OverrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IsForcedOpen == nil {
		writeError(w, http.StatusBadRequest, "is_forced_open is required")
		return
	}

	st, err := s.service.SetOverride(r.Context(), r.PathValue("shop_id"), *req.IsForcedOpen, req.Reason, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/shops/{shop_id}/override/clear
func (s *HTTPServer) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("override_clear")
	st, err := s.service.ClearOverride(r.Context(), r.PathValue("shop_id"), actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/shops/{shop_id}/history?limit=N
func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("history")
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "history is not recorded")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := s.audit.ListAudit(r.Context(), r.PathValue("shop_id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []db.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
