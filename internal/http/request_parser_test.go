package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gastos/internal/core"

	"github.com/go-chi/chi/v5"
)

var art = time.FixedZone("ART", -3*60*60)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  café  ", "café"},
		{"<b>credito</b>", "credito"},
		{"<script>alert(1)</script>uber", "uber"},
		{"Café & Co", "Café & Co"},
		{"tab\there", "tab\there"},
		{"bell\x07", "bell"},
		{"a > b", "a  b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeInput(tt.in); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    core.PeriodKind
		wantErr bool
	}{
		{"default", "", core.CurrentMonth, false},
		{"last", "period=last", core.PreviousMonth, false},
		{"90 days", "period=90days", core.Last90Days, false},
		{"explicit range", "start=2025-09-01&end=2025-09-30", core.CustomRange, false},
		{"range wins over period", "period=last&start=2025-09-01&end=2025-09-30", core.CustomRange, false},
		{"unknown period", "period=decade", "", true},
		{"custom without range", "period=custom", "", true},
		{"start only", "start=2025-09-01", "", true},
		{"bad date", "start=01/09/2025&end=2025-09-30", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p, err := ParsePeriod(q, art)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidPeriod) {
					t.Fatalf("expected ErrInvalidPeriod, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod: %v", err)
			}
			if p.Kind != tt.want {
				t.Fatalf("kind = %q, want %q", p.Kind, tt.want)
			}
			if p.Kind == core.CustomRange && (p.Start.Location() != art || p.Start.Day() != 1) {
				t.Fatalf("range start not parsed in location: %v", p.Start)
			}
		})
	}
}

func TestParseExportRange(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, art)
	tests := []struct {
		name      string
		query     string
		wantNil   bool
		wantStart string
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "none", query: "", wantNil: true},
		{name: "both", query: "start=2025-09-01&end=2025-09-30", wantStart: "2025-09-01", wantEnd: core.EndOfDay(time.Date(2025, 9, 30, 0, 0, 0, 0, art))},
		{name: "start only runs to now", query: "start=2025-10-01", wantStart: "2025-10-01", wantEnd: now},
		{name: "end only", query: "end=2025-10-01", wantErr: true},
		{name: "reversed", query: "start=2025-10-02&end=2025-10-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			rng, err := ParseExportRange(q, now, art)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidPeriod) {
					t.Fatalf("expected ErrInvalidPeriod, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExportRange: %v", err)
			}
			if tt.wantNil {
				if rng != nil {
					t.Fatalf("expected nil range, got %+v", rng)
				}
				return
			}
			if core.DayKey(rng.Start) != tt.wantStart || !rng.End.Equal(tt.wantEnd) {
				t.Fatalf("range = %v..%v", rng.Start, rng.End)
			}
		})
	}
}

func TestParseHistoryFilter(t *testing.T) {
	q, _ := url.ParseQuery("q=%3Ci%3Ecaf%C3%A9%3C%2Fi%3E&category=all&payment=debit")
	f := ParseHistoryFilter(q)
	if f.Search != "café" || f.Category != "" || f.Payment != "debit" {
		t.Fatalf("unexpected filter %+v", f)
	}

	long, _ := url.ParseQuery("q=" + strings.Repeat("ñ", maxFilterLen+10))
	if got := len([]rune(ParseHistoryFilter(long).Search)); got != maxFilterLen {
		t.Fatalf("search should be truncated to %d runes, got %d", maxFilterLen, got)
	}
}

func TestUserIDParam(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"u1", true},
		{"5491122334455", true},
		{"", false},
		{strings.Repeat("x", maxUserIDLen+1), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("userID", tt.id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		_, err := userIDParam(req)
		if (err == nil) != tt.want {
			t.Errorf("userIDParam(%q) err = %v", tt.id, err)
		}
	}
}

func TestParseTransactionUpdate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    core.TransactionUpdate
		wantErr error
	}{
		{"number amount", `{"amount": 12.5, "payment_method": " <b>credito</b> "}`, core.TransactionUpdate{Amount: core.Money{Cents: 1250}, PaymentMethod: "credito"}, nil},
		{"string amount", `{"amount": "99.99"}`, core.TransactionUpdate{Amount: core.Money{Cents: 9999}}, nil},
		{"zero amount", `{"amount": 0}`, core.TransactionUpdate{}, core.ErrInvalidAmount},
		{"unknown field", `{"amount": 1, "category": "x"}`, core.TransactionUpdate{}, errBadRequest},
		{"empty body", ``, core.TransactionUpdate{}, errBadRequest},
		{"trailing data", `{"amount": 1} {}`, core.TransactionUpdate{}, errBadRequest},
		{"too large", `{"payment_method": "` + strings.Repeat("a", maxBodyBytes) + `"}`, core.TransactionUpdate{}, errBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(tt.body))
			got, err := parseTransactionUpdate(httptest.NewRecorder(), req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTransactionUpdate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePreferences(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"active_tab":"history","widgets":{"installments":false}}`))
	p, err := parsePreferences(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("parsePreferences: %v", err)
	}
	if p.ActiveTab != core.TabHistory || p.Widgets["installments"] || !p.Widgets["month_summary"] {
		t.Fatalf("unexpected preferences %+v", p)
	}

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"active_tab":"charts"}`))
	if _, err := parsePreferences(httptest.NewRecorder(), req); !errors.Is(err, core.ErrInvalidPreferences) {
		t.Fatalf("expected ErrInvalidPreferences, got %v", err)
	}
}
