package web

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/constants"
	apperrors "github.com/julianstephens/authip/internal/errors"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/sorting"
	"github.com/julianstephens/authip/internal/table"
	"github.com/julianstephens/authip/internal/whitelist"
)

type flash struct {
	Message string
	Kind    string
}

type header struct {
	Title     string
	Href      template.URL
	Indicator string
}

type pageData struct {
	APIURL    string
	Headers   []header
	Rows      []table.Row
	Criteria  table.Criteria
	Sort      sorting.State
	LoadError string

	TotalRows   string
	TotalQuota  string
	TotalLoaded string
	UpdatedAt   string

	// Query is the encoded view state (sort and filter).
	Query      string
	QueryURL   template.URL
	CancelHref template.URL

	Draft   models.Draft
	Editing bool
	EditID  models.RecordID
	Edit    models.Edit

	Flash        *flash
	BannerMillis int64
	PollMillis   int64
}

// viewState reads sort and filter from the query string, or from the
// hidden f_* fields on form posts.
func viewState(r *http.Request) (sorting.State, table.Criteria) {
	state := sorting.State{
		Key:       r.FormValue("sort"),
		Direction: sorting.ParseDirection(r.FormValue("dir")),
	}
	if !sortable(state.Key) {
		state = sorting.State{}
	}

	c := table.Criteria{IP: r.FormValue("ip"), Description: r.FormValue("desc")}
	if r.Method == http.MethodPost {
		c = table.Criteria{IP: r.PostFormValue("f_ip"), Description: r.PostFormValue("f_desc")}
	}
	return state, c
}

func sortable(key string) bool {
	for _, k := range table.SortableKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func encodeState(state sorting.State, c table.Criteria) url.Values {
	q := url.Values{}
	if state.Key != "" {
		q.Set("sort", state.Key)
		q.Set("dir", state.Direction.String())
	}
	if c.IP != "" {
		q.Set("ip", c.IP)
	}
	if c.Description != "" {
		q.Set("desc", c.Description)
	}
	return q
}

func (s *Server) page(r *http.Request, state sorting.State, c table.Criteria) *pageData {
	now := s.cfg.Now()
	query := encodeState(state, c).Encode()
	data := &pageData{
		APIURL:       s.cfg.APIURL,
		Criteria:     c,
		Sort:         state,
		Query:        query,
		QueryURL:     template.URL(query),
		CancelHref:   template.URL("/?" + query),
		Draft:        models.Draft{ExpiresOn: brfmt.DefaultExpiration(now)},
		UpdatedAt:    now.In(brfmt.Location()).Format("15:04:05"),
		BannerMillis: constants.BannerDuration.Milliseconds(),
		PollMillis:   s.cfg.PollInterval.Milliseconds(),
	}

	for _, col := range table.Columns {
		h := header{Title: col.Title}
		if col.Sortable {
			h.Href = template.URL("/?" + encodeState(state.Toggle(col.Key), c).Encode())
			h.Indicator = sorting.Indicator(state, col.Key)
		}
		data.Headers = append(data.Headers, h)
	}

	records, err := s.svc.List(r.Context())
	if err != nil {
		logger.Error("Failed to load records", "error", err)
		data.LoadError = apperrors.Format(err)
		records = nil
	}
	view := table.Build(records, table.Options{Criteria: c, Sort: state, Now: now})
	data.Rows = view.Rows
	data.TotalRows, data.TotalQuota, data.TotalLoaded = view.Totals()

	if msg := r.URL.Query().Get("msg"); msg != "" {
		kind := r.URL.Query().Get("kind")
		if kind != "success" {
			kind = "danger"
		}
		data.Flash = &flash{Message: msg, Kind: kind}
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("Failed to render template", "template", name, "error", err)
	}
}

// redirect sends the browser back to the table with a flash message.
func redirect(w http.ResponseWriter, r *http.Request, state sorting.State, c table.Criteria, msg, kind string) {
	q := encodeState(state, c)
	q.Set("msg", msg)
	q.Set("kind", kind)
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	state, c := viewState(r)
	s.render(w, http.StatusOK, "page", s.page(r, state, c))
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	state, c := viewState(r)
	s.render(w, http.StatusOK, "table", s.page(r, state, c))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	state, c := viewState(r)
	id := models.RecordID(chi.URLParam(r, "id"))

	rec, err := s.svc.Find(r.Context(), id)
	if err != nil {
		redirect(w, r, state, c, apperrors.Format(err), "danger")
		return
	}

	data := s.page(r, state, c)
	data.Editing = true
	data.EditID = id
	data.Edit = models.EditFor(rec)
	s.render(w, http.StatusOK, "page", data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	state, c := viewState(r)
	d := models.Draft{
		IPAddress:   strings.TrimSpace(r.PostFormValue("ip")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		ExpiresOn:   brfmt.ApplyDateMask(r.PostFormValue("expires")),
		Quota:       brfmt.MaskNumber(r.PostFormValue("quota")),
	}

	if _, err := s.svc.Create(r.Context(), d); err != nil {
		data := s.page(r, state, c)
		data.Draft = d
		data.Flash = &flash{Message: createMessage(err), Kind: "danger"}
		s.render(w, statusFor(err), "page", data)
		return
	}
	redirect(w, r, state, c, "IP "+d.IPAddress+" added", "success")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	state, c := viewState(r)
	id := models.RecordID(chi.URLParam(r, "id"))
	e := models.Edit{
		IPAddress:   strings.TrimSpace(r.PostFormValue("ip")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		ExpiresOn:   brfmt.ApplyDateMask(r.PostFormValue("expires")),
		ExpiresTime: strings.TrimSpace(r.PostFormValue("time")),
		Quota:       brfmt.MaskNumber(r.PostFormValue("quota")),
	}

	if _, err := s.svc.Update(r.Context(), id, e); err != nil {
		data := s.page(r, state, c)
		data.Editing = true
		data.EditID = id
		data.Edit = e
		data.Flash = &flash{Message: apperrors.Format(err), Kind: "danger"}
		s.render(w, statusFor(err), "page", data)
		return
	}
	redirect(w, r, state, c, "Record "+string(id)+" updated", "success")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	state, c := viewState(r)
	id := models.RecordID(chi.URLParam(r, "id"))
	ip := strings.TrimSpace(r.PostFormValue("ip"))

	if err := s.svc.Delete(r.Context(), id, ip); err != nil {
		redirect(w, r, state, c, apperrors.Format(err), "danger")
		return
	}
	label := "Record " + string(id)
	if ip != "" {
		label = "IP " + ip
	}
	redirect(w, r, state, c, label+" deleted", "success")
}

func createMessage(err error) string {
	if errors.Is(err, whitelist.ErrDuplicateIP) {
		return "This IP is already registered"
	}
	return apperrors.Format(err)
}

// statusFor maps input errors to 422. Anything else failed upstream.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMissingFields),
		errors.Is(err, models.ErrInvalidIP),
		errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidTime),
		errors.Is(err, whitelist.ErrDuplicateIP):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
