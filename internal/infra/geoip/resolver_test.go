package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	calls int
	code  string
	err   error
}

func (f *fakeReader) Country(net.IP) (*geoip2.Country, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = f.code
	return rec, nil
}

func (f *fakeReader) Close() error { return nil }

func TestCountryCodeCachesAnswers(t *testing.T) {
	reader := &fakeReader{code: "ID"}
	r := newResolver(reader)
	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("36.84.1.1")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if code != "ID" {
			t.Fatalf("code = %q, want ID", code)
		}
	}
	if reader.calls != 1 {
		t.Fatalf("reader calls = %d, want 1", reader.calls)
	}
}

func TestCountryCodeErrors(t *testing.T) {
	r := newResolver(&fakeReader{err: errors.New("corrupt db")})
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected invalid ip error")
	}
	if _, err := r.CountryCode("8.8.8.8"); err == nil {
		t.Fatal("expected reader error")
	}
	var none *Resolver
	if _, err := none.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if none.Lookup() != nil {
		t.Fatal("nil resolver should have a nil lookup")
	}
}

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(\"\") = %v, %v", r, err)
	}
}
