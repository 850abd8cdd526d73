package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func params(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	p := params(t, "")
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("defaults = %+v", p)
	}

	p = params(t, "limit=5&offset=10")
	if p.Limit != 5 || p.Offset != 10 {
		t.Errorf("parsed = %+v", p)
	}

	p = params(t, "limit=5000")
	if p.Limit != MaxLimit {
		t.Errorf("limit not clamped: %+v", p)
	}

	p = params(t, "offset=-3")
	if p.Offset != 0 {
		t.Errorf("negative offset accepted: %+v", p)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 50, 20, 0)
	if !r.HasMore {
		t.Error("expected HasMore for total beyond first page")
	}
	r = NewResponse([]int{1, 2}, 2, 20, 0)
	if r.HasMore {
		t.Error("unexpected HasMore when all rows returned")
	}
}
