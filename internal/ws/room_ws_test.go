package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{name: "bearer header", header: "Bearer tok-1", want: "tok-1"},
		{name: "lowercase scheme", header: "bearer tok-2", want: "tok-2"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "scheme without token", header: "Bearer", want: ""},
		{name: "query fallback", query: "tok-3", want: "tok-3"},
		{name: "header wins over query", header: "Bearer tok-4", query: "tok-5", want: "tok-4"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			target := "/ws/rooms/1"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			c.Request = httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}

			if got := bearerToken(c); got != tc.want {
				t.Fatalf("bearerToken = %q, want %q", got, tc.want)
			}
		})
	}
}
