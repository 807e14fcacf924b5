package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"energy-series/internal/series/application"
	series "energy-series/internal/series/domain"
	"energy-series/internal/series/interfaces/export"
)

const timeLayout = time.RFC3339

// Engine is the query surface served over HTTP.
type Engine interface {
	Window(ctx context.Context, req series.WindowRequest) (application.WindowResult, error)
	MonthTotal(ctx context.Context, seriesName string, month time.Month) (application.MonthResult, error)
	ListSeries(ctx context.Context) ([]string, error)
}

// Handler serves read-only series queries and exports.
type Handler struct {
	engine   Engine
	location *time.Location
	now      func() time.Time
	logger   *log.Logger
}

// NewHandler constructs a Handler. Timestamps without an explicit zone are
// interpreted in loc.
func NewHandler(engine Engine, loc *time.Location, logger *log.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("series handler: nil engine")
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{engine: engine, location: loc, now: time.Now, logger: logger}, nil
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/api/v1/series", h)
	mux.Handle("/api/v1/series/", h)
	mux.Handle("/api/v1/exports/", h)
}

// ServeHTTP routes series requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/api/v1/series":
		h.handleList(w, r)
	case "/api/v1/series/window":
		h.handleWindow(w, r)
	case "/api/v1/series/month":
		h.handleMonth(w, r)
	case "/api/v1/exports/window.csv":
		h.handleWindowCSV(w, r)
	case "/api/v1/exports/window.xlsx":
		h.handleWindowXLSX(w, r)
	case "/api/v1/exports/month.pdf":
		h.handleMonthPDF(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type windowResponse struct {
	Series    string               `json:"series"`
	Mode      string               `json:"mode"`
	Direction string               `json:"direction"`
	Anchor    string               `json:"anchor"`
	Start     string               `json:"start"`
	End       string               `json:"end"`
	Empty     bool                 `json:"empty"`
	Samples   int                  `json:"samples"`
	Power     []series.OutputPoint `json:"power"`
	Energy    []series.OutputPoint `json:"energy"`
}

type dailyRow struct {
	Day      string  `json:"day"`
	Samples  int     `json:"samples"`
	EnergyWh float64 `json:"energy_wh"`
}

type monthResponse struct {
	Series  string     `json:"series"`
	Month   string     `json:"month"`
	Start   string     `json:"start"`
	End     string     `json:"end"`
	Samples int        `json:"samples"`
	TotalWh float64    `json:"total_wh"`
	Daily   []dailyRow `json:"daily"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.engine.ListSeries(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, names)
}

func (h *Handler) handleWindow(w http.ResponseWriter, r *http.Request) {
	result, ok := h.window(w, r)
	if !ok {
		return
	}
	res := result.Resolution
	writeJSON(w, windowResponse{
		Series:    res.Series,
		Mode:      res.Kind.String(),
		Direction: res.Direction.String(),
		Anchor:    series.FormatTimestamp(res.Anchor),
		Start:     series.FormatTimestamp(res.Window.Start),
		End:       series.FormatTimestamp(res.Window.End),
		Empty:     res.Empty,
		Samples:   len(result.Samples),
		Power:     result.Output.Power,
		Energy:    result.Output.Energy,
	})
}

func (h *Handler) handleMonth(w http.ResponseWriter, r *http.Request) {
	result, ok := h.month(w, r)
	if !ok {
		return
	}
	res := result.Resolution
	daily := make([]dailyRow, 0, len(result.Daily))
	for _, day := range result.Daily {
		daily = append(daily, dailyRow{Day: day.Day.Format("2006-01-02"), Samples: day.Samples, EnergyWh: day.EnergyWh})
	}
	writeJSON(w, monthResponse{
		Series:  res.Series,
		Month:   res.Window.Start.Format("2006-01"),
		Start:   series.FormatTimestamp(res.Window.Start),
		End:     series.FormatTimestamp(res.Window.End),
		Samples: result.Samples,
		TotalWh: result.TotalWh,
		Daily:   daily,
	})
}

func (h *Handler) handleWindowCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.window(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Resolution.Series+`.csv"`)
	if err := export.WriteWindowCSV(w, result); err != nil {
		h.logger.Printf("series handler: write csv error: %v", err)
	}
}

func (h *Handler) handleWindowXLSX(w http.ResponseWriter, r *http.Request) {
	result, ok := h.window(w, r)
	if !ok {
		return
	}
	data, err := export.BuildWindowXLSX(result)
	if err != nil {
		h.logger.Printf("series handler: build xlsx error: %v", err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Resolution.Series+`.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleMonthPDF(w http.ResponseWriter, r *http.Request) {
	result, ok := h.month(w, r)
	if !ok {
		return
	}
	data, err := export.BuildMonthStatementPDF(result, h.now().In(h.location))
	if err != nil {
		h.logger.Printf("series handler: build pdf error: %v", err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	name := result.Resolution.Series + "-" + result.Resolution.Window.Start.Format("2006-01")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.pdf"`)
	_, _ = w.Write(data)
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) (application.WindowResult, bool) {
	req, err := h.parseWindowRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return application.WindowResult{}, false
	}
	result, err := h.engine.Window(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return application.WindowResult{}, false
	}
	return result, true
}

func (h *Handler) month(w http.ResponseWriter, r *http.Request) (application.MonthResult, bool) {
	name := r.URL.Query().Get("series")
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "month must be an integer between 1 and 12", http.StatusBadRequest)
		return application.MonthResult{}, false
	}
	result, err := h.engine.MonthTotal(r.Context(), name, time.Month(month))
	if err != nil {
		h.respondError(w, r, err)
		return application.MonthResult{}, false
	}
	return result, true
}

func (h *Handler) parseWindowRequest(r *http.Request) (series.WindowRequest, error) {
	query := r.URL.Query()
	name := query.Get("series")
	if name == "" {
		return series.WindowRequest{}, errors.New("series is required")
	}
	kind, err := series.ParseKind(query.Get("mode"))
	if err != nil || kind == series.KindMonth {
		return series.WindowRequest{}, errors.New("mode must be ADD, DIFF or FECHA")
	}
	delta := 0
	if raw := query.Get("delta"); raw != "" {
		delta, err = strconv.Atoi(raw)
		if err != nil {
			return series.WindowRequest{}, errors.New("delta must be an integer number of minutes")
		}
	}
	at, err := h.parseTime(query.Get("at"))
	if err != nil {
		return series.WindowRequest{}, err
	}

	var req series.WindowRequest
	switch kind {
	case series.KindAdd:
		req = series.NewAddRequest(name, abs(delta))
		req.Reference = at
	case series.KindDiff:
		req = series.NewDiffRequest(name, abs(delta))
		req.Reference = at
	case series.KindNearest:
		if at.IsZero() {
			return series.WindowRequest{}, errors.New("at is required for FECHA")
		}
		req = series.NewNearestRequest(name, at, delta)
	}
	return req, nil
}

func (h *Handler) parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New("at must be RFC3339")
	}
	return parsed.In(h.location), nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, series.ErrInvalidMode),
		errors.Is(err, series.ErrMalformedRequest),
		errors.Is(err, series.ErrInvalidSeries),
		errors.Is(err, series.ErrInvalidMonth):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, series.ErrStoreUnavailable):
		h.logger.Printf("series handler: %s store error: %v", r.URL.Path, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Printf("series handler: %s error: %v", r.URL.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
