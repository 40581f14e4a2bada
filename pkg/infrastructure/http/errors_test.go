package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseErrorResponse_Success(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Body:       http.NoBody,
	}

	if err := ParseErrorResponse(resp); err != nil {
		t.Errorf("Expected nil error for 200 response, got: %v", err)
	}
}

func TestParseErrorResponse_Error(t *testing.T) {
	body := `{"error":{"reason":"index_not_found_exception"}}`
	resp := &http.Response{
		StatusCode: 404,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("POST", "http://localhost:9200/fit-data/_bulk", nil),
	}

	err := ParseErrorResponse(resp)
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}

	if httpErr.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", httpErr.StatusCode)
	}

	if !strings.Contains(httpErr.Body, "index_not_found_exception") {
		t.Errorf("Expected body to contain reason, got: %s", httpErr.Body)
	}

	if !strings.Contains(httpErr.Error(), "index_not_found_exception") {
		t.Errorf("Expected Error() to contain body, got: %s", httpErr.Error())
	}
}

func TestParseErrorResponse_TruncatesLongBodies(t *testing.T) {
	body := strings.Repeat("x", MaxErrorBodySize+100)
	resp := &http.Response{
		StatusCode: 500,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("GET", "http://localhost:9200/", nil),
	}

	err := ParseErrorResponse(resp)
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}
	if len(httpErr.Body) != MaxErrorBodySize+3 {
		t.Errorf("Expected truncated body, got %d bytes", len(httpErr.Body))
	}
}
