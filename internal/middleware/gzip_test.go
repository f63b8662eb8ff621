package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func gzipTestHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)

	if r.URL.Path == "/empty" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		contentType     string
		bodyContains    string
	}

	tests := []struct {
		name        string
		path        string
		requestBody string
		headers     map[string]string
		want        want
	}{
		{
			name:        "pdf is passed through",
			requestBody: "%PDF-1.3",
			headers: map[string]string{
				"Accept-Encoding": "gzip, deflate",
				"Content-Type":    "application/pdf",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "",
				contentType:     "application/pdf",
				bodyContains:    "received: %PDF-1.3",
			},
		},
		{
			name: "no content is not compressed",
			path: "/empty",
			headers: map[string]string{
				"Accept-Encoding": "gzip",
			},
			want: want{
				statusCode:      http.StatusNoContent,
				contentEncoding: "",
				contentType:     "application/json",
			},
		},
		{
			name:        "client accepts gzip, application/json",
			requestBody: `{"accountNumber":"1234"}`,
			headers: map[string]string{
				"Accept-Encoding": "gzip",
				"Content-Type":    "application/json",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				contentType:     "application/json",
				bodyContains:    `received: {"accountNumber":"1234"}`,
			},
		},
		{
			name:        "client does not accept gzip",
			requestBody: "plain request",
			headers: map[string]string{
				"Accept-Encoding": "",
				"Content-Type":    "text/plain",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "",
				contentType:     "text/plain",
				bodyContains:    "received: plain request",
			},
		},
		{
			name:        "compressed request body",
			requestBody: `{"billingPeriod":"2026-10"}`,
			headers: map[string]string{
				"Content-Encoding": "gzip",
				"Accept-Encoding":  "gzip",
				"Content-Type":     "application/json",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				contentType:     "application/json",
				bodyContains:    `received: {"billingPeriod":"2026-10"}`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader
			if strings.Contains(tt.headers["Content-Encoding"], "gzip") {
				var buf bytes.Buffer
				gz := gzip.NewWriter(&buf)
				_, err := gz.Write([]byte(tt.requestBody))
				if err != nil {
					t.Fatalf("write gzip: %v", err)
				}
				if err := gz.Close(); err != nil {
					t.Fatalf("close gzip: %v", err)
				}
				requestBody = &buf
			} else {
				requestBody = strings.NewReader(tt.requestBody)
			}

			path := tt.path
			if path == "" {
				path = "/api/water/quote"
			}
			req := httptest.NewRequest(http.MethodPost, path, requestBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			w := httptest.NewRecorder()

			h := GzipMiddleware(http.HandlerFunc(gzipTestHandler))
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.want.statusCode)
			}

			if ct := res.Header.Get("Content-Type"); ct != tt.want.contentType {
				t.Fatalf("content-type: got %q want %q", ct, tt.want.contentType)
			}

			if ce := res.Header.Get("Content-Encoding"); ce != tt.want.contentEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.want.contentEncoding)
			}

			var body []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				body, err = io.ReadAll(gr)
			} else {
				body, err = io.ReadAll(res.Body)
			}
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			if !strings.Contains(string(body), tt.want.bodyContains) {
				t.Fatalf("body %q does not contain %q", string(body), tt.want.bodyContains)
			}
		})
	}
}


func TestGzipMiddleware_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/water/quote", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(gzipTestHandler)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
}
