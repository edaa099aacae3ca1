package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medflow/dispensary-backend/pkg/actor"
	"github.com/medflow/dispensary-backend/pkg/errors"
	"github.com/medflow/dispensary-backend/pkg/i18n"
	"github.com/medflow/dispensary-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, fmt.Errorf("lookup: %w", errors.NotFound("prescription")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "prescription not found", resp.Error.Message)
}

func TestError_Localized(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(i18n.WithLocale(req.Context(), i18n.LocalePortuguese))

	Error(rec, req, errors.Internal("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ocorreu um erro inesperado", decode(t, rec).Error.Message)
}

func TestError_PlainErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, fmt.Errorf("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pq")
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	type body struct {
		Quantity int    `json:"quantity" validate:"gt=0"`
		Lot      string `json:"lot" validate:"required"`
	}

	err := Validate(body{})
	appErr := errors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "must be greater than 0", appErr.Details["quantity"])
	assert.Equal(t, "this field is required", appErr.Details["lot"])

	assert.NoError(t, Validate(body{Quantity: 1, Lot: "L1"}))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("12", "id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := ParseID(raw, "id")
		assert.Error(t, err, raw)
	}
}

func TestPagination(t *testing.T) {
	page, perPage := Pagination(httptest.NewRequest(http.MethodGet, "/?page=3&per_page=50", nil))
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, perPage)

	page, perPage = Pagination(httptest.NewRequest(http.MethodGet, "/?page=-1&per_page=1000", nil))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, perPage)
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, 3, NewMeta(1, 20, 41).TotalPages)
	assert.Equal(t, 0, NewMeta(1, 20, 0).TotalPages)
}

func TestStaffContext(t *testing.T) {
	var got *actor.Actor
	h := StaffContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = actor.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderStaffID, "9")
	req.Header.Set(HeaderStaffName, "Carla")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.StaffID)
	assert.Equal(t, "Carla", got.Name)

	got = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderStaffID, "not-a-number")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, got)
}

func TestRequestID_PropagatesCorrelation(t *testing.T) {
	var requestID, correlationID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
		correlationID = messaging.CorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", requestID)
	assert.Equal(t, "req-123", correlationID)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}
