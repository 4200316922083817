package conditional

import (
	"net/url"
	"testing"
)

func TestHashQueryParams_Deterministic(t *testing.T) {
	a := hashQueryParams(url.Values{"b": {"2"}, "a": {"1"}})
	b := hashQueryParams(url.Values{"a": {"1"}, "b": {"2"}})
	if a != b {
		t.Errorf("same params hashed differently: %q vs %q", a, b)
	}

	c := hashQueryParams(url.Values{"a": {"1"}, "b": {"3"}})
	if a == c {
		t.Error("different params should not collide")
	}

	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
}

func TestHashQueryParams_MultiValues(t *testing.T) {
	a := hashQueryParams(url.Values{"tag": {"x", "y"}})
	b := hashQueryParams(url.Values{"tag": {"y", "x"}})
	// Multi-value order is part of the query's meaning
	if a == b {
		t.Error("multi-value order should be significant")
	}
}

func TestHashContext(t *testing.T) {
	a := hashContext(RequestContext{Roles: []string{"admin", "user"}, Location: "de"})
	b := hashContext(RequestContext{Roles: []string{"user", "admin"}, Location: "de"})
	if a != b {
		t.Error("role order should be insignificant")
	}

	c := hashContext(RequestContext{Roles: []string{"user"}, Location: "de"})
	if a == c {
		t.Error("different roles should not collide")
	}

	d := hashContext(RequestContext{Roles: []string{"admin", "user"}, Location: "de", Personalized: true})
	if a == d {
		t.Error("personalization flag should be significant")
	}
}

func TestETagFor(t *testing.T) {
	a := ETagFor("v1")
	if a != ETagFor("v1") {
		t.Error("ETagFor should be deterministic")
	}
	if a == ETagFor("v2") {
		t.Error("different versions should yield different ETags")
	}
	if a[0] != '"' || a[len(a)-1] != '"' {
		t.Errorf("ETag %q should be quoted", a)
	}
}

func TestMatchesIfNoneMatch(t *testing.T) {
	etag := `"abc"`

	cases := []struct {
		header string
		want   bool
	}{
		{`"abc"`, true},
		{`"xyz"`, false},
		{`"xyz", "abc"`, true},
		{`W/"abc"`, true},
		{`*`, true},
		{``, false},
	}

	for _, tc := range cases {
		if got := MatchesIfNoneMatch(tc.header, etag); got != tc.want {
			t.Errorf("MatchesIfNoneMatch(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
