package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tenderd/tenderd/tenderd/httpapi"
)

func TestWrite(t *testing.T) {
	t.Parallel()
	rw := httptest.NewRecorder()
	httpapi.Write(context.Background(), rw, http.StatusConflict, httpapi.Response{Message: "<b>"})
	require.Equal(t, http.StatusConflict, rw.Code)
	require.Equal(t, "application/json; charset=utf-8", rw.Header().Get("Content-Type"))
	require.Contains(t, rw.Body.String(), `\u003cb\u003e`)
}

func TestForbidden(t *testing.T) {
	t.Parallel()
	rw := httptest.NewRecorder()
	httpapi.Forbidden(rw)
	require.Equal(t, http.StatusForbidden, rw.Code)
	var resp httpapi.Response
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&resp))
	require.Equal(t, "Forbidden.", resp.Message)
	require.Empty(t, resp.Detail)
}

func TestRead(t *testing.T) {
	t.Parallel()

	type body struct {
		Name string `json:"name" validate:"required,slug"`
	}

	for _, tc := range []struct {
		name   string
		body   string
		ok     bool
		fields []string
	}{
		{name: "OK", body: `{"name":"acme-corp"}`, ok: true},
		{name: "Invalid", body: `{"name":"Acme Corp"}`, fields: []string{"name"}},
		{name: "Missing", body: `{}`, fields: []string{"name"}},
		{name: "NotJSON", body: `{`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rw := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tc.body))
			var v body
			ok := httpapi.Read(context.Background(), rw, r, &v)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				return
			}
			require.Equal(t, http.StatusBadRequest, rw.Code)
			var resp httpapi.Response
			require.NoError(t, json.NewDecoder(rw.Body).Decode(&resp))
			fields := make([]string, 0, len(resp.Validations))
			for _, v := range resp.Validations {
				fields = append(fields, v.Field)
			}
			require.ElementsMatch(t, tc.fields, fields)
		})
	}
}
