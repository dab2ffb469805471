package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

var servedRoutes = []string{
	"GET /v1/health",
	"GET /v1/ready",
	"GET /v1/metrics",
	"POST /v1/ask",
	"POST /v1/sql/validate",
	"GET /v1/widgets/kpis",
	"GET /v1/widgets/sales",
	"GET /v1/widgets/ratings",
	"GET /v1/widgets/top-cities",
}

func readOpenAPI(t *testing.T) []byte {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	content, err := os.ReadFile(filepath.Join(filepath.Dir(filename), "..", "..", "api", "openapi.yaml"))
	if err != nil {
		t.Fatalf("read openapi.yaml: %v", err)
	}
	return content
}

// documentedRoutes lists "METHOD /path" for every operation under paths.
func documentedRoutes(t *testing.T, content []byte) []string {
	t.Helper()
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		t.Fatalf("parse openapi.yaml: %v", err)
	}
	var routes []string
	for path, operations := range doc.Paths {
		for method := range operations {
			switch method {
			case "get", "post", "put", "patch", "delete":
				routes = append(routes, strings.ToUpper(method)+" "+path)
			}
		}
	}
	slices.Sort(routes)
	return routes
}

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	documented := documentedRoutes(t, readOpenAPI(t))
	want := slices.Clone(servedRoutes)
	slices.Sort(want)
	if !slices.Equal(documented, want) {
		t.Fatalf("documented routes = %v\nserved routes = %v", documented, want)
	}

	h := NewHandler(loadConfig(t, nil), Dependencies{})
	for _, route := range servedRoutes {
		method, path, _ := strings.Cut(route, " ")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader("{}")))
		if rr.Code == http.StatusNotFound || rr.Code == http.StatusMethodNotAllowed {
			t.Fatalf("%s is documented but not routed (status %d)", route, rr.Code)
		}
	}
}

func TestOpenAPIDocumentsErrorCodes(t *testing.T) {
	text := string(readOpenAPI(t))
	for _, code := range []string{"VALIDATION_ERROR", "SQL_VALIDATION_ERROR", "QUERY_TIMEOUT", "DATABASE_UNAVAILABLE", "SQL_ERROR", "INTERNAL_ERROR", "RATE_LIMITED"} {
		if !strings.Contains(text, code) {
			t.Fatalf("openapi does not document error code %s", code)
		}
	}
}
