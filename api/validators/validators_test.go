package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
)

type moneyBody struct {
	Amount   *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Override *decimal.Decimal `json:"override" validate:"omitempty,gte=0"`
	Status   string           `json:"status" validate:"required,oneof=DELIVERED RTO"`
}

func TestDecodeJSONBodyDecimalRules(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"amount":"10.50","status":"RTO"}`, true},
		{"zero override allowed", `{"override":0,"status":"DELIVERED"}`, true},
		{"zero amount rejected", `{"amount":"0","status":"RTO"}`, false},
		{"negative override rejected", `{"override":"-1","status":"RTO"}`, false},
		{"status outside set", `{"status":"SHIPPED"}`, false},
		{"unknown field", `{"status":"RTO","extra":true}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest moneyBody
			err := DecodeJSONBody(req, &dest)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	require.Equal(t, 5, params.Limit)
	require.Equal(t, "abc", params.Cursor)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=1000", nil))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePathUUID(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParsePathUUID(withParam(id.String()), "orderId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParsePathUUID(withParam("nope"), "orderId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryFilters(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?buyer_id="+id.String()+"&from=2026-01-02", nil)

	buyer, err := ParseQueryUUID(req, "buyer_id")
	require.NoError(t, err)
	require.Equal(t, id, *buyer)

	from, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	require.Equal(t, 2026, from.Year())

	missing, err := ParseQueryUUID(req, "seller_id")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = ParseQueryTime(httptest.NewRequest(http.MethodGet, "/?from=yesterday", nil), "from")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abcdef", SanitizeString("abcdef", 0))
}
