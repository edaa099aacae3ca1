package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/dispensary-backend/pkg/actor"
	"github.com/medflow/dispensary-backend/pkg/errors"
	"github.com/medflow/dispensary-backend/pkg/httputil"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

func pathID(r *http.Request) (int64, error) {
	return httputil.ParseID(chi.URLParam(r, "id"), "id")
}

func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := httputil.ParseID(raw, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, errors.Validation(map[string]string{name: "must be a non-negative integer"})
	}
	return &n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// queryTime accepts a date or an RFC 3339 timestamp. Upper bounds are
// exclusive, so a bare date used as one is moved to the next midnight.
func queryTime(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errors.Validation(map[string]string{name: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// page converts page/per_page into limit and offset
func page(r *http.Request) (pageNum, perPage, limit, offset int) {
	pageNum, perPage = httputil.Pagination(r)
	return pageNum, perPage, perPage, (pageNum - 1) * perPage
}

// respondError renders err and logs failures that are not the caller's fault
func respondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, msg string) {
	if appErr := errors.AsAppError(err); appErr == nil || appErr.StatusCode >= http.StatusInternalServerError {
		log = log.WithRequestID(httputil.GetRequestID(r.Context()))
		if staffID := actor.StaffID(r.Context()); staffID > 0 {
			log = log.WithStaffID(staffID)
		}
		log.Error().Err(err).Msg(msg)
	}
	httputil.Error(w, r, err)
}
