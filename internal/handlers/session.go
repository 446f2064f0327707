package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	sessionName    = "tradesim-session"
	sessionUserKey = "user_id"
	ctxUserKey     = "user_id"
)

// RequireUser resolves the session cookie into a user id on the gin
// context. Requests without a logged-in session are redirected to the
// login page rather than erroring.
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := h.sessions.Get(c.Request, sessionName)
		if err != nil {
			// A stale or tampered cookie is just a logged-out user.
			h.log.Warnf("decode session failed: %v", err)
		}
		uid, ok := sess.Values[sessionUserKey].(int64)
		if !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Set(ctxUserKey, uid)
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	v, _ := c.Get(ctxUserKey)
	id, _ := v.(int64)
	return id
}

func (h *Handler) saveUserSession(c *gin.Context, id int64) error {
	sess, _ := h.sessions.Get(c.Request, sessionName)
	sess.Values[sessionUserKey] = id
	return sess.Save(c.Request, c.Writer)
}

func (h *Handler) clearSession(c *gin.Context) {
	sess, _ := h.sessions.Get(c.Request, sessionName)
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(c.Request, c.Writer); err != nil {
		h.log.Warnf("clear session failed: %v", err)
	}
}
