package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, TraceIDLength*2)
	assert.NotEqual(t, id, GetTraceID(SetTraceID(context.Background())))
}

func TestGetSubject(t *testing.T) {
	_, ok := GetSubject(context.Background())
	assert.False(t, ok)

	_, ok = GetSubject(context.WithValue(context.Background(), SubjectContextKey, ""))
	assert.False(t, ok)

	subject, ok := GetSubject(context.WithValue(context.Background(), SubjectContextKey, "ops"))
	assert.True(t, ok)
	assert.Equal(t, "ops", subject)
}

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, map[string]int{"n": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
}

func TestRespondWithErrorAndLog_RedactsLogsAndHidesError(t *testing.T) {
	log, buf := logger.GetTestLogger(t)
	ctx := logger.WithLogger(SetTraceID(context.Background()), log)
	req := httptest.NewRequest(http.MethodGet, "/v1/styles", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	err := errors.New("dial postgres://app:hunter22@db:5432/tokensmith: refused")
	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "An unexpected error occurred", err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "An unexpected error occurred", body.Error)
	assert.Equal(t, GetTraceID(ctx), body.TraceID)
	assert.NotContains(t, w.Body.String(), "postgres")

	logs := buf.String()
	assert.Contains(t, logs, "API error response")
	assert.Contains(t, logs, "[REDACTED_CREDENTIAL]")
	assert.NotContains(t, logs, "hunter22")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"x"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"name":"x","extra":1}`, wantErr: true},
		{name: "trailing data", body: `{"name":"x"}{}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", p.Name)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type payload struct {
		Name string `validate:"required"`
	}
	assert.NoError(t, ValidateRequest(payload{Name: "x"}))
	assert.Error(t, ValidateRequest(payload{}))
}
