package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	historyapp "github.com/khanhnv2901/seca-suite/internal/application/history"
	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

const defaultMaxUpload = 50 << 20

// toolEnvelope mirrors the analysis server's response envelope, extended with
// where the result came from.
type toolEnvelope struct {
	Success        bool              `json:"success"`
	Data           any               `json:"data,omitempty"`
	Error          string            `json:"error,omitempty"`
	Hint           string            `json:"hint,omitempty"`
	Source         assessment.Source `json:"source,omitempty"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	HistoryID      string            `json:"history_id,omitempty"`
}

func (s *Server) handleToolRequest(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Tools == nil {
		s.writeToolError(w, r, http.StatusServiceUnavailable, errors.New("tools not configured"))
		return
	}

	limit := s.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(32 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		s.writeToolError(w, r, http.StatusBadRequest, fmt.Errorf("invalid form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	tool, err := assessment.ParseTool(r.PostFormValue("tool"))
	if err != nil {
		s.writeToolError(w, r, http.StatusBadRequest, err)
		return
	}

	capturePath, cleanup, err := s.stageCapture(r)
	if err != nil {
		s.writeToolError(w, r, statusFor(err), err)
		return
	}
	defer cleanup()

	report, err := dispatch(r.Context(), s.cfg.Tools, tool, r.PostFormValue, capturePath)
	if err != nil {
		s.writeToolError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, toolEnvelope{
		Success:        true,
		Data:           report.Result,
		Source:         report.Source,
		FallbackReason: report.FallbackReason,
		HistoryID:      report.HistoryID,
	})
}

// stageCapture copies an uploaded pcap_file to a temp file so the capture
// reader can seek it. The returned cleanup is always safe to call.
func (s *Server) stageCapture(r *http.Request) (string, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return "", noop, nil
	}
	file, header, err := r.FormFile("pcap_file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", noop, nil
	}
	if err != nil {
		return "", noop, fmt.Errorf("%w: pcap_file: %v", sharedErrors.ErrInvalidInput, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".pcap", ".pcapng", ".cap":
	default:
		return "", noop, fmt.Errorf("%w: pcap_file must be .pcap, .pcapng or .cap", sharedErrors.ErrInvalidInput)
	}

	tmp, err := os.CreateTemp(s.cfg.TempDir, "upload-*"+ext)
	if err != nil {
		return "", noop, fmt.Errorf("failed to stage capture: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to stage capture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to stage capture: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

// writeToolError answers POST /api.php. Business failures keep the upstream
// contract of HTTP 200 with success=false.
func (s *Server) writeToolError(w http.ResponseWriter, r *http.Request, status int, err error) {
	env := toolEnvelope{Success: false, Error: publicError(err)}

	var be *backend.Error
	if errors.As(err, &be) {
		env.Hint = be.Hint
		if be.Kind == backend.KindBusiness && be.Status < http.StatusInternalServerError {
			env.Error = be.Message
			writeJSON(w, http.StatusOK, env)
			return
		}
	}
	if status >= 500 {
		s.requestLogger(r).Error("tool_request_failed", zap.Error(err), zap.Int("status", status))
		if status == http.StatusInternalServerError {
			env.Error = "internal server error"
		}
	}
	writeJSON(w, status, env)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var be *backend.Error
	if errors.As(err, &be) {
		switch be.Kind {
		case backend.KindValidation:
			return http.StatusBadRequest
		case backend.KindBusy:
			return http.StatusTooManyRequests
		case backend.KindTimeout:
			return http.StatusGatewayTimeout
		case backend.KindBusiness:
			if be.Status >= http.StatusInternalServerError {
				return http.StatusBadGateway
			}
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}

	switch {
	case errors.Is(err, sharedErrors.ErrHistoryNotFound),
		errors.Is(err, sharedErrors.ErrScheduleNotFound),
		errors.Is(err, sharedErrors.ErrDiagramNotFound),
		errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, tools.ErrNoFallback), errors.Is(err, ErrJobsClosed):
		return http.StatusServiceUnavailable
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

var badRequestErrors = []error{
	sharedErrors.ErrInvalidInput,
	sharedErrors.ErrMissingRequired,
	sharedErrors.ErrValidation,
	sharedErrors.ErrUnsupportedTool,
	sharedErrors.ErrEmptyTarget,
	sharedErrors.ErrInvalidInterval,
	sharedErrors.ErrEmptySystemName,
	sharedErrors.ErrNoComponents,
	sharedErrors.ErrUnknownMethodology,
	sharedErrors.ErrUnknownFramework,
	sharedErrors.ErrUnknownSystemType,
	sharedErrors.ErrUnknownComponentType,
	sharedErrors.ErrDanglingConnection,
	sharedErrors.ErrSelfConnection,
}

// publicError is the message shown to API clients for a failed analysis.
func publicError(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.UserMessage()
	}
	return err.Error()
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("jobs not configured"))
		return
	}
	var req JobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	job, err := s.cfg.Jobs.StartJob(r.Context(), req)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		writeJSON(w, http.StatusOK, []Job{})
		return
	}
	jobs, err := s.cfg.Jobs.ListJobs(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, ErrJobNotFound)
		return
	}
	job, err := s.cfg.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("jobs not configured"))
		return
	}

	ch, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.requestLogger(r).Warn("streaming unsupported", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				s.requestLogger(r).Error("failed to marshal job", zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: job\n")) ||
				!s.writeStreamChunk(w, []byte("data: ")) ||
				!s.writeStreamChunk(w, payload) ||
				!s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// handleJobSocket pushes job updates over a websocket. Client messages are
// read only to notice the close.
func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("jobs not configured"))
		return
	}
	ch, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.requestLogger(r).Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case job, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				<-gone
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(job); err != nil {
				return
			}
		}
	}
}

type historyView struct {
	ID         string            `json:"id"`
	Tool       assessment.Tool   `json:"tool"`
	Target     string            `json:"target,omitempty"`
	Source     assessment.Source `json:"source"`
	Score      float64           `json:"score"`
	RiskLevel  string            `json:"risk_level,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	ScheduleID string            `json:"schedule_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Result     any               `json:"result,omitempty"`
}

func toHistoryView(e *history.Entry) historyView {
	return historyView{
		ID:         e.ID(),
		Tool:       e.Tool(),
		Target:     e.Target(),
		Source:     e.Source(),
		Score:      e.Score(),
		RiskLevel:  e.RiskLevel(),
		Summary:    e.Summary(),
		ScheduleID: e.ScheduleID(),
		CreatedAt:  e.CreatedAt(),
	}
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSON(w, http.StatusOK, []historyView{})
		return
	}
	q := r.URL.Query()
	filter := history.Filter{ScheduleID: q.Get("schedule_id"), Limit: queryLimit(r, 100)}
	if raw := q.Get("tool"); raw != "" {
		tool, err := assessment.ParseTool(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		filter.Tool = tool
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: since must be RFC3339", sharedErrors.ErrInvalidInput))
			return
		}
		filter.Since = since
	}

	entries, err := s.cfg.History.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	views := make([]historyView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toHistoryView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		s.writeError(w, r, http.StatusNotFound, sharedErrors.ErrHistoryNotFound)
		return
	}
	entry, err := s.cfg.History.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	view := toHistoryView(entry)
	result, err := historyapp.Result(entry)
	if err != nil {
		s.requestLogger(r).Warn("history payload unreadable", zap.String("id", entry.ID()), zap.Error(err))
		view.Result = entry.Payload()
	} else {
		view.Result = result
	}
	writeJSON(w, http.StatusOK, view)
}

type scheduleView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Tool       assessment.Tool   `json:"tool"`
	Target     string            `json:"target"`
	Options    map[string]string `json:"options,omitempty"`
	Interval   string            `json:"interval"`
	Enabled    bool              `json:"enabled"`
	NextRun    time.Time         `json:"next_run"`
	LastRun    *time.Time        `json:"last_run,omitempty"`
	LastStatus schedule.Status   `json:"last_status"`
	LastError  string            `json:"last_error,omitempty"`
}

func toScheduleView(sc *schedule.Schedule) scheduleView {
	v := scheduleView{
		ID:         sc.ID(),
		Name:       sc.Name(),
		Tool:       sc.Tool(),
		Target:     sc.Target(),
		Options:    sc.Options(),
		Interval:   sc.Interval().String(),
		Enabled:    sc.Enabled(),
		NextRun:    sc.NextRun(),
		LastStatus: sc.LastStatus(),
		LastError:  sc.LastError(),
	}
	if last := sc.LastRun(); !last.IsZero() {
		v.LastRun = &last
	}
	return v
}

type createScheduleRequest struct {
	Name     string            `json:"name"`
	Tool     string            `json:"tool"`
	Target   string            `json:"target"`
	Options  map[string]string `json:"options"`
	Interval string            `json:"interval"`
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Schedules == nil {
		writeJSON(w, http.StatusOK, []scheduleView{})
		return
	}
	list, err := s.cfg.Schedules.List(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	views := make([]scheduleView, 0, len(list))
	for _, sc := range list {
		views = append(views, toScheduleView(sc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Schedules == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("schedules not configured"))
		return
	}
	var req createScheduleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	tool, err := assessment.ParseTool(req.Tool)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: interval %q", sharedErrors.ErrInvalidInterval, req.Interval))
		return
	}

	sc, err := s.cfg.Schedules.Add(r.Context(), req.Name, tool, req.Target, req.Options, interval)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleView(sc))
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Schedules == nil {
		s.writeError(w, r, http.StatusNotFound, sharedErrors.ErrScheduleNotFound)
		return
	}
	if err := s.cfg.Schedules.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Schedules == nil {
		s.writeError(w, r, http.StatusNotFound, sharedErrors.ErrScheduleNotFound)
		return
	}
	res, err := s.cfg.Schedules.RunNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	body := map[string]any{
		"schedule_id": res.ScheduleID,
		"name":        res.Name,
		"status":      res.Status,
		"duration":    res.Duration.String(),
	}
	if res.Error != "" {
		body["error"] = res.Error
	}
	if res.Report != nil {
		body["source"] = res.Report.Source
		body["history_id"] = res.Report.HistoryID
		body["result"] = res.Report.Result
	}
	writeJSON(w, http.StatusOK, body)
}
