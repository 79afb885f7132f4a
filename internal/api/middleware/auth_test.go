package middleware

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestRequireAuth_RejectsMissingHeader(t *testing.T) {
	handlerCalled := false
	h := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload/answer", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if handlerCalled {
		t.Fatal("must not call the next handler without a token")
	}
}

func TestRequireAuth_RejectsWrongSigningSecret(t *testing.T) {
	token := signToken(t, Claims{Role: "mentor"})
	h := RequireAuth("a-different-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not reach the next handler with a token signed by a different secret")
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload/answer", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_AcceptsValidTokenAndStoresClaims(t *testing.T) {
	token := signToken(t, Claims{Role: "mentor", MentorIDs: []string{"m1"}})

	var seen *Claims
	h := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims to be present in context")
		}
		seen = c
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload/answer", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.Role != "mentor" || len(seen.MentorIDs) != 1 || seen.MentorIDs[0] != "m1" {
		t.Fatalf("unexpected claims: %+v", seen)
	}
}

func TestRequireManageContent_RejectsNonPrivilegedRole(t *testing.T) {
	h := RequireManageContent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not call next handler without manage-content role")
	}))

	req := withClaims(httptest.NewRequest(http.MethodPost, "/upload/transfer", nil), &Claims{Role: "mentor"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireManageContent_AcceptsAdminAndContentManager(t *testing.T) {
	for _, role := range []string{"admin", "content-manager"} {
		h := RequireManageContent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := withClaims(httptest.NewRequest(http.MethodPost, "/upload/transfer", nil), &Claims{Role: role})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected role %q to pass manage-content, got %d", role, rec.Code)
		}
	}
}

func TestRequireEditMentor_AllowsOwnMentorDeniesOthers(t *testing.T) {
	extractor := func(r *http.Request) (string, error) { return "m1", nil }

	allow := RequireEditMentor(extractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := withClaims(httptest.NewRequest(http.MethodPost, "/upload/answer", nil), &Claims{Role: "mentor", MentorIDs: []string{"m1", "m2"}})
	rec := httptest.NewRecorder()
	allow.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own mentor, got %d", rec.Code)
	}

	deny := RequireEditMentor(extractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not reach handler for a mentor not in the caller's set")
	}))
	req2 := withClaims(httptest.NewRequest(http.MethodPost, "/upload/answer", nil), &Claims{Role: "mentor", MentorIDs: []string{"m2"}})
	rec2 := httptest.NewRecorder()
	deny.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a mentor outside the caller's set, got %d", rec2.Code)
	}
}

func TestRequireEditMentor_ManageContentBypassesMentorSet(t *testing.T) {
	extractor := func(r *http.Request) (string, error) { return "someone-elses-mentor", nil }
	h := RequireEditMentor(extractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := withClaims(httptest.NewRequest(http.MethodPost, "/upload/answer", nil), &Claims{Role: "admin"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected manage-content role to bypass the edit-mentor check, got %d", rec.Code)
	}
}

func TestExtractMentorIDFromBody_JSONAndMultipart(t *testing.T) {
	jsonReq := httptest.NewRequest(http.MethodPost, "/upload/answer/cancel", strings.NewReader(`{"mentor":"m1","question":"q1"}`))
	jsonReq.Header.Set("Content-Type", "application/json")
	mentorID, err := ExtractMentorIDFromBody(jsonReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mentorID != "m1" {
		t.Fatalf("expected m1, got %q", mentorID)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("body", `{"mentor":"m1","question":"q1"}`); err != nil {
		t.Fatalf("failed to write multipart field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	multiReq := httptest.NewRequest(http.MethodPost, "/upload/answer", &buf)
	multiReq.Header.Set("Content-Type", mw.FormDataContentType())

	mentorID2, err := ExtractMentorIDFromBody(multiReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mentorID2 != "m1" {
		t.Fatalf("expected m1 from multipart body, got %q", mentorID2)
	}
}

func withClaims(r *http.Request, c *Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), claimsKey, c))
}
