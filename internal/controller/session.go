package controller

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/storekit/paygate/internal/middleware"
	"github.com/storekit/paygate/internal/session"
)

// sessionCookie carries the checkout session id across the redirect to
// the provider and back.
const sessionCookie = "paygate_session"

// sessionFromRequest resolves the checkout session for a request. The
// cookie wins; a "session" query parameter is accepted as fallback for
// providers that strip cookies on the return redirect.
func sessionFromRequest(r *http.Request) session.Session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	if id == "" {
		id = r.URL.Query().Get("session")
	}

	userID, _ := middleware.GetUserID(r.Context())
	return session.Session{
		ID:       id,
		UserID:   userID,
		ClientIP: hashAddr(r.RemoteAddr),
	}
}

// ensureSession returns the request's session, minting a new session id
// and cookie when the client arrived without one.
func ensureSession(w http.ResponseWriter, r *http.Request) session.Session {
	sess := sessionFromRequest(r)
	if sess.ID == "" {
		sess.ID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// hashAddr derives a short stable identifier from a client address so
// raw IPs never land in Redis keys or the event log.
func hashAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:6])
}
