package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		limit, off int
	}{
		{"", DefaultLimit, 0},
		{"limit=50&offset=10", 50, 10},
		{"limit=9999", MaxLimit, 0},
		{"limit=-5&offset=-3", DefaultLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, c := range cases {
		got := paramsFor(t, c.query)
		if got.Limit != c.limit || got.Offset != c.off {
			t.Errorf("query %q: got %+v, want limit=%d offset=%d", c.query, got, c.limit, c.off)
		}
	}
}

func TestNewResponseHasMore(t *testing.T) {
	if r := NewResponse(nil, 100, 20, 0); !r.HasMore {
		t.Error("first page of 100 should have more")
	}
	if r := NewResponse(nil, 100, 20, 80); r.HasMore {
		t.Error("last page should not have more")
	}
	if r := NewResponse(nil, 10, 20, 0); r.HasMore {
		t.Error("single page should not have more")
	}
}
