package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/utils"
)

// Session is the value stored under "Token:<token>" by the platform's login service.
type Session struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// SessionLookup resolves a token to its session; ok is false for unknown tokens.
type SessionLookup func(token string) (session *Session, ok bool, err error)

func RedisSessionLookup(token string) (*Session, bool, error) {
	var s Session
	exists, err := config.GetRedisObject("Token:"+token, &s)
	if err != nil || !exists {
		return nil, exists, err
	}
	return &s, true, nil
}

func SessionMiddleware(lookup SessionLookup) gin.HandlerFunc {
	if lookup == nil {
		lookup = RedisSessionLookup
	}
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		session, exists, err := lookup(token)
		if err != nil || !exists || session == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, session.Username)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetIsAdminInContext(ctx, session.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
