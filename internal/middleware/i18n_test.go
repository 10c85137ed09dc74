package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWith(headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.4:80"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		fallback string
		country  string
		want     string
	}{
		{name: "x-locale beats country", headers: map[string]string{"X-Locale": "ID"}, country: "US", want: "id"},
		{name: "x-locale beats accept-language", headers: map[string]string{"X-Locale": "en", "Accept-Language": "id"}, want: "en"},
		{name: "accept-language with region and weight", headers: map[string]string{"Accept-Language": "id-ID;q=0.9"}, want: "id"},
		{name: "accept-language weights reorder", headers: map[string]string{"Accept-Language": "en-US;q=0.5, id;q=0.9"}, want: "id"},
		{name: "unsupported language is english", headers: map[string]string{"Accept-Language": "fr-FR"}, country: "ID", want: "en"},
		{name: "unparsable header is english", headers: map[string]string{"X-Locale": "???"}, country: "ID", want: "en"},
		{name: "indonesia without headers", country: "ID", want: "id"},
		{name: "other country without headers", country: "SG", fallback: "id", want: "en"},
		{name: "fallback with region", fallback: "id-ID", want: "id"},
		{name: "unsupported fallback", fallback: "fr", want: "en"},
		{name: "nothing known", want: "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectLocale(requestWith(tt.headers), tt.fallback, tt.country); got != tt.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	fixed := func(code string, err error) CountryLookup {
		return func(string) (string, error) { return code, err }
	}
	tests := []struct {
		name    string
		headers map[string]string
		lookup  CountryLookup
		want    string
	}{
		{name: "first proxy header wins", headers: map[string]string{"X-IP-Country": "sg", "CF-IPCountry": "id"}, want: "SG"},
		{name: "region from weighted accept-language", headers: map[string]string{"Accept-Language": "id-ID;q=0.9"}, want: "ID"},
		{name: "underscore region in x-locale", headers: map[string]string{"X-Locale": "en_AU"}, want: "AU"},
		{name: "bare indonesian locale", headers: map[string]string{"Accept-Language": "id;q=0.8"}, lookup: fixed("us", nil), want: "ID"},
		{name: "bare english locale defers to lookup", headers: map[string]string{"Accept-Language": "en"}, lookup: fixed("my", nil), want: "MY"},
		{name: "lookup error", lookup: fixed("", errors.New("no record")), want: ""},
		{name: "no signal", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCountry(requestWith(tt.headers), tt.lookup); got != tt.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveCountryLooksUpForwardedClient(t *testing.T) {
	var asked string
	req := requestWith(map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"})
	got := ResolveCountry(req, func(ip string) (string, error) {
		asked = ip
		return "id", nil
	})
	if asked != "198.51.100.7" || got != "ID" {
		t.Fatalf("lookup ip = %q country = %q, want 198.51.100.7/ID", asked, got)
	}
	if ResolveCountry(nil, nil) != "" {
		t.Fatal("nil request should resolve to no country")
	}
}

func TestContextAccessorsDefault(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != "en" {
		t.Fatalf("LocaleFromContext() = %q, want en", got)
	}
	if got := CountryFromContext(ctx); got != "" {
		t.Fatalf("CountryFromContext() = %q, want empty", got)
	}
	ctx = context.WithValue(ctx, LocaleKey, "")
	if got := LocaleFromContext(ctx); got != "en" {
		t.Fatalf("LocaleFromContext() empty value = %q, want en", got)
	}
}

func TestI18NMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		headers     map[string]string
		lookup      CountryLookup
		fallback    string
		wantLocale  string
		wantCountry string
	}{
		{name: "geoip indonesia", lookup: func(string) (string, error) { return "id", nil }, fallback: "en", wantLocale: "id", wantCountry: "ID"},
		{name: "header locale with lookup elsewhere", headers: map[string]string{"X-Locale": "id"}, lookup: func(string) (string, error) { return "us", nil }, wantLocale: "id", wantCountry: "ID"},
		{name: "no signal uses fallback", fallback: "id", wantLocale: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var locale, country string
			h := I18N(tt.fallback, tt.lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				locale = LocaleFromContext(r.Context())
				country = CountryFromContext(r.Context())
			}))
			h.ServeHTTP(httptest.NewRecorder(), requestWith(tt.headers))
			if locale != tt.wantLocale || country != tt.wantCountry {
				t.Fatalf("locale = %q country = %q, want %q/%q", locale, country, tt.wantLocale, tt.wantCountry)
			}
		})
	}
}
