package web

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"meetgrid/internal/availability"
	"meetgrid/internal/expand"
	"meetgrid/internal/grid"
	"meetgrid/internal/ics"
	appLog "meetgrid/internal/log"
	"meetgrid/internal/model"
	"meetgrid/internal/slot"
)

const maxRequestBody = 1 << 20

// slotRequest is the body shared by every /api endpoint; each uses the
// fields it needs.
type slotRequest struct {
	Times  []string       `json:"times"`
	People []model.Person `json:"people,omitempty"`

	Timezone   string `json:"timezone,omitempty"`
	Locale     string `json:"locale,omitempty"`
	TimeFormat string `json:"time_format,omitempty"`
	Name       string `json:"name,omitempty"`

	// Mode is "strict" or "lenient"; empty uses the configured default.
	Mode        string `json:"mode,omitempty"`
	WindowWeeks *int   `json:"window_weeks,omitempty"`
	// Now pins the reference date for weekday tokens; defaults to the
	// server clock.
	Now *time.Time `json:"now,omitempty"`

	IncludeCalendars bool `json:"include_calendars,omitempty"`
}

// requestError is a client mistake reported as 400.
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return requestError{fmt.Errorf(format, args...)}
}

func (s *Server) decode(r *http.Request) (slotRequest, []byte, error) {
	var req slotRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return req, nil, badRequest("read body: %v", err)
	}
	if len(body) > maxRequestBody {
		return req, nil, badRequest("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, nil, badRequest("invalid JSON: %v", err)
	}
	return req, body, nil
}

func (s *Server) options(req slotRequest) (expand.Options, time.Time, error) {
	opts := expand.Options{WindowWeeks: s.cfg.WindowWeeks, Mode: expand.Lenient}
	if s.cfg.StrictTokens {
		opts.Mode = expand.Strict
	}
	if req.Mode != "" {
		m, err := expand.ParseMode(req.Mode)
		if err != nil {
			return opts, time.Time{}, requestError{err}
		}
		opts.Mode = m
	}
	if req.WindowWeeks != nil {
		opts.WindowWeeks = *req.WindowWeeks
	}
	now := s.clock.Now()
	if req.Now != nil {
		now = req.Now.UTC()
	}
	return opts, now, nil
}

func (s *Server) gridOptions(req slotRequest) (grid.Options, error) {
	tz := req.Timezone
	if tz == "" {
		tz = s.cfg.Timezone
	}
	loc, err := grid.LoadLocation(tz)
	if err != nil {
		return grid.Options{}, requestError{err}
	}
	format := req.TimeFormat
	if format == "" {
		format = s.cfg.TimeFormat
	}
	tf, err := grid.ParseTimeFormat(format)
	if err != nil {
		return grid.Options{}, requestError{err}
	}
	locale := req.Locale
	if locale == "" {
		locale = s.cfg.Locale
	}
	return grid.Options{Locale: locale, TimeFormat: tf, Location: loc}, nil
}

func (s *Server) expand(req slotRequest) (expand.Result, expand.Options, time.Time, error) {
	opts, now, err := s.options(req)
	if err != nil {
		return expand.Result{}, opts, now, err
	}
	res, err := expand.Expand(req.Times, now, opts)
	if err != nil {
		return expand.Result{}, opts, now, err
	}
	s.metrics.slots.Observe(float64(len(res.Instants)))
	for _, sk := range res.Skipped {
		appLog.Debug("skipped malformed token", "token", sk.Token, "err", sk.Err)
	}
	return res, opts, now, nil
}

func (s *Server) aggregate(req slotRequest, instants []expand.Instant, opts expand.Options, now time.Time) (availability.Result, int, error) {
	people := req.People
	if req.IncludeCalendars && s.subs != nil {
		cal, err := s.subs.People(instants, s.cfg.SlotLength())
		if err != nil {
			return availability.Result{}, 0, err
		}
		people = append(append(make([]model.Person, 0, len(people)+len(cal)), people...), cal...)
	}
	res, err := availability.Aggregate(instants, people, now, opts)
	return res, len(people), err
}

// fail maps engine errors to HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var re requestError
	switch {
	case errors.As(err, &re), errors.Is(err, slot.ErrMalformedToken):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api request failed", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type instantDTO struct {
	Token string    `json:"token"`
	Time  time.Time `json:"time"`
}

type skippedDTO struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

type expandResponse struct {
	Instants []instantDTO `json:"instants"`
	Skipped  []skippedDTO `json:"skipped,omitempty"`
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.decode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, _, _, err := s.expand(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := expandResponse{Instants: make([]instantDTO, len(res.Instants))}
	for i, in := range res.Instants {
		resp.Instants[i] = instantDTO{Token: in.Token, Time: in.Time}
	}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedDTO{Token: sk.Token, Error: sk.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type tableResponse struct {
	grid.Table
	Timezone string `json:"timezone"`
	Locale   string `json:"locale"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.decode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	gopts, err := s.gridOptions(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, _, _, err := s.expand(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tbl, err := grid.Build(res.Instants, gopts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tableResponse{
		Table:    tbl,
		Timezone: gopts.Location.String(),
		Locale:   grid.ResolveLocale(gopts.Locale),
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.decode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, opts, now, err := s.expand(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	agg, _, err := s.aggregate(req, res.Instants, opts, now)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// heatCell is a grid cell joined with its availability.
type heatCell struct {
	*grid.Cell
	People    []string `json:"people"`
	Count     int      `json:"count"`
	Intensity float64  `json:"intensity"`
}

type heatColumn struct {
	Date         time.Time   `json:"date"`
	DateLabel    string      `json:"date_label,omitempty"`
	WeekdayLabel string      `json:"weekday_label"`
	GapBefore    bool        `json:"gap_before"`
	Cells        []*heatCell `json:"cells"`
}

type heatmapResponse struct {
	Columns  []heatColumn `json:"columns"`
	Rows     []grid.Row   `json:"rows"`
	Min      int          `json:"min"`
	Max      int          `json:"max"`
	People   int          `json:"people"`
	Timezone string       `json:"timezone"`
}

// handleHeatmap builds the table and the aggregate and zips them by token,
// which is otherwise the UI's job.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	req, body, err := s.decode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	_, now, err := s.options(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key := cacheKey(body, now)
	// Calendar-backed people change on refresh, so those requests bypass it.
	if !req.IncludeCalendars {
		if resp, ok := s.heatmaps.Get(key); ok {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	gopts, err := s.gridOptions(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, opts, now, err := s.expand(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tbl, err := grid.Build(res.Instants, gopts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	agg, people, err := s.aggregate(req, res.Instants, opts, now)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := zip(tbl, agg)
	resp.Timezone = gopts.Location.String()
	resp.People = people
	if !req.IncludeCalendars {
		s.heatmaps.Add(key, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func zip(tbl grid.Table, agg availability.Result) heatmapResponse {
	lookup := agg.Lookup()
	resp := heatmapResponse{
		Columns: make([]heatColumn, len(tbl.Columns)),
		Rows:    tbl.Rows,
		Min:     agg.Min,
		Max:     agg.Max,
	}
	for ci, col := range tbl.Columns {
		hc := heatColumn{
			Date:         col.Date,
			DateLabel:    col.DateLabel,
			WeekdayLabel: col.WeekdayLabel,
			GapBefore:    col.GapBefore,
			Cells:        make([]*heatCell, len(col.Cells)),
		}
		for ri, cell := range col.Cells {
			if cell == nil {
				continue
			}
			c := &heatCell{Cell: cell, People: []string{}}
			if a, ok := lookup[cell.Token]; ok {
				c.People = a.People
				c.Count = a.Count()
				c.Intensity = agg.Intensity(c.Count)
			}
			hc.Cells[ri] = c
		}
		resp.Columns[ci] = hc
	}
	return resp
}

func cacheKey(body []byte, now time.Time) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(now.UTC().Format("2006-01-02")))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.decode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, _, now, err := s.expand(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body := ics.Export(res.Instants, ics.ExportOptions{
		Name:       req.Name,
		SlotLength: s.cfg.SlotLength(),
		Stamp:      now,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetgrid.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
