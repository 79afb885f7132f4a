package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mentorpal/mentor-upload-service/internal/api/handler"
)

// Claims is the decoded shape of the bearer token C4's authorization
// decorators inspect (spec.md §4.4, supplemented from original_source/'s
// authorization_decorator.py: a decoded JWT's role/mentorIds claims).
type Claims struct {
	Role      string   `json:"role"`
	MentorIDs []string `json:"mentorIds"`
	jwt.RegisteredClaims
}

const (
	roleAdmin          = "admin"
	roleContentManager = "content-manager"
)

type ctxAuthKey int

const claimsKey ctxAuthKey = iota

// RequireAuth decodes a symmetric-signed bearer token (golang-jwt/jwt/v4,
// HMAC keyed by JWT_SECRET, adapted from livepeer-catalyst-api's
// accesscontrol package which verifies an EC-asymmetric key instead),
// storing the decoded Claims in the request context. Missing or invalid
// tokens are rejected with 401, grounded on spec.md §4.4/§7's AuthError
// disposition.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := decodeBearer(r, secret)
			if err != nil {
				handler.Error(w, http.StatusUnauthorized, "AuthError", err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decodeBearer(r *http.Request, secret string) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.New("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("malformed Authorization header")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.New("invalid token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ClaimsFromContext retrieves the Claims RequireAuth stored, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func (c *Claims) hasManageContent() bool {
	return c.Role == roleAdmin || c.Role == roleContentManager
}

func (c *Claims) hasEditMentor(mentorID string) bool {
	if c.hasManageContent() {
		return true
	}
	for _, m := range c.MentorIDs {
		if m == mentorID {
			return true
		}
	}
	return false
}

// MentorIDExtractor reads the target mentor ID out of a request, without
// consuming the body for downstream handlers.
type MentorIDExtractor func(r *http.Request) (string, error)

// RequireManageContent rejects requests whose Claims don't carry the
// admin/content-manager role (spec.md §4.4 "manage-content" policy).
func RequireManageContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.hasManageContent() {
			handler.Error(w, http.StatusForbidden, "AuthError", "requires manage-content role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEditMentor rejects requests unless the caller has manage-content
// or the target mentor (read via extractMentorID, which must not consume
// r.Body irreversibly) is in the caller's own mentor set (spec.md §4.4
// "edit-mentor" policy).
func RequireEditMentor(extractMentorID MentorIDExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				handler.Error(w, http.StatusUnauthorized, "AuthError", "missing auth claims")
				return
			}
			mentorID, err := extractMentorID(r)
			if err != nil {
				handler.Error(w, http.StatusBadRequest, "ValidationError", err.Error())
				return
			}
			if !claims.hasEditMentor(mentorID) {
				handler.Error(w, http.StatusForbidden, "AuthError", "requires edit-mentor access for "+mentorID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// mentorIDField is the minimal shape every upload request payload shares:
// a top-level or JSON-body "mentor" field.
type mentorIDField struct {
	Mentor string `json:"mentor"`
}

// ExtractMentorIDFromBody peeks the request body (JSON, or multipart's
// "body" field per spec.md §6) for the "mentor" field and restores the
// body so the handler can parse it again. Grounded on
// _examples/Enzo0100-jimiiothub-dvr-upload/handlers/handlers.go's
// multipart-then-restore pattern.
func ExtractMentorIDFromBody(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return "", errors.New("failed to read request body")
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", errors.New("malformed multipart body")
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var f mentorIDField
		if err := json.Unmarshal([]byte(r.FormValue("body")), &f); err != nil {
			return "", errors.New("malformed body field")
		}
		return f.Mentor, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", errors.New("failed to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var f mentorIDField
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", errors.New("malformed JSON body")
	}
	return f.Mentor, nil
}
