package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/platform/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess := session.New()
	c := NewClient(Config{BaseURL: srv.URL}, sess, zerolog.Nop())
	return c, sess
}

func TestGet_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRID string
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"ok":true}`))
	})
	sess.Establish(session.User{ID: 1}, session.RoleDoctor, "tok-123")

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.Get(context.Background(), "/doctor/me/", &out); err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRID == "" {
		t.Error("X-Request-ID not set")
	}
	if !out.OK {
		t.Error("response not decoded")
	}
}

func TestGet_NoCredentialWhenLoggedOut(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})
	if err := c.Get(context.Background(), "/health/", nil); err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestPost_GenericErrorPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"License number is required."}`))
	})

	err := c.Post(context.Background(), "/doctor/profile/step2/credentials/", map[string]string{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsValidation(err) {
		t.Errorf("IsValidation(%v) = false", err)
	}
	if !strings.Contains(err.Error(), "License number is required.") {
		t.Errorf("err = %v, want server message surfaced verbatim", err)
	}
}

func TestPost_FieldErrorPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"bio":["Bio must be less than 280 characters."],"phone_number":["Phone number is required."]}`))
	})

	err := c.Post(context.Background(), "/doctor/profile/step3/contact/", map[string]string{}, nil)
	fields := FieldErrors(err)
	if len(fields["bio"]) != 1 || len(fields["phone_number"]) != 1 {
		t.Fatalf("FieldErrors = %v", fields)
	}
}

func TestUnauthorized_NotifiesSession(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
	})
	expired := false
	sess.OnExpired = func() { expired = true }

	err := c.Get(context.Background(), "/doctor/me/", nil)
	if !IsAuth(err) {
		t.Fatalf("IsAuth(%v) = false", err)
	}
	if !expired {
		t.Error("OnExpired hook not fired for 401")
	}
}

func TestForbidden_IsAuthButNoExpiryHook(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Workspace not found or access denied"}`))
	})
	expired := false
	sess.OnExpired = func() { expired = true }

	err := c.Get(context.Background(), "/workspace/9/clinical-summary/", nil)
	if !IsAuth(err) {
		t.Fatalf("IsAuth(%v) = false", err)
	}
	if expired {
		t.Error("403 must not fire the expiry hook")
	}
}

func TestWithIdempotencyKey(t *testing.T) {
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Idempotency-Key")
		w.Write([]byte(`{}`))
	})
	err := c.Post(context.Background(), "/doctor/profile/step1/basic-info/", map[string]string{"first_name": "A"}, nil,
		WithIdempotencyKey("step-key-1"))
	if err != nil {
		t.Fatalf("Post() = %v", err)
	}
	if got != "step-key-1" {
		t.Errorf("Idempotency-Key = %q", got)
	}
}

func TestPostMultipart(t *testing.T) {
	var gotTitle, gotFile, gotContent string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotTitle = r.FormValue("title")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFile = hdr.Filename
		b, _ := io.ReadAll(f)
		gotContent = string(b)
		w.Write([]byte(`{}`))
	})

	err := c.PostMultipart(context.Background(), "/workspace/1/reports/",
		map[string]string{"title": "Blood Test Results"},
		File{Field: "file", Name: "cbc.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.4")},
		nil)
	if err != nil {
		t.Fatalf("PostMultipart() = %v", err)
	}
	if gotTitle != "Blood Test Results" || gotFile != "cbc.pdf" || gotContent != "%PDF-1.4" {
		t.Errorf("multipart fields = %q %q %q", gotTitle, gotFile, gotContent)
	}
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Get(ctx, "/slow/", nil); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestDecodeError_MachineReadableCode(t *testing.T) {
	e := decodeError(http.StatusUnauthorized, []byte(`{"detail":"Token has expired.","code":"token_expired"}`))
	if e.Code != "token_expired" {
		t.Errorf("Code = %q", e.Code)
	}
	if e.Message != "Token has expired." {
		t.Errorf("Message = %q", e.Message)
	}
	if _, ok := e.Fields["code"]; ok {
		t.Error("code leaked into field errors")
	}
}

func TestDecodeError_EmptyAndNonJSON(t *testing.T) {
	e := decodeError(http.StatusBadGateway, nil)
	if e.Message == "" {
		t.Error("empty payload should fall back to status text")
	}
	e = decodeError(http.StatusInternalServerError, []byte("upstream exploded"))
	if e.Message != "upstream exploded" {
		t.Errorf("Message = %q", e.Message)
	}
}
