package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// FormRequest builds a request with an application/x-www-form-urlencoded body.
func FormRequest(t *testing.T, method, target string, fields map[string]string) *http.Request {
	t.Helper()

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// MultipartRequest builds a request uploading content as the "file" field.
func MultipartRequest(t *testing.T, target, fileName string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// ParseJSONResponse parses a JSON response into v.
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse JSON response: %v\nBody: %s", err, resp.Body.String())
	}
}

// AssertStatusCode checks if the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()

	if resp.Code != expected {
		t.Errorf("Expected status code %d, got %d\nBody: %s",
			expected, resp.Code, resp.Body.String())
	}
}

// FindCookie returns the named cookie set on the response, or nil.
func FindCookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// SetCookie adds a cookie to an HTTP request.
func SetCookie(req *http.Request, name, value string) {
	req.AddCookie(&http.Cookie{
		Name:  name,
		Value: value,
	})
}
