package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"consulting-calendar/internal/gcal"
	appLog "consulting-calendar/internal/log"
)

const oauthStateCookie = "oauth_state"

// GoogleAuthHandler initiates the OAuth2 flow for the engineer calendar import.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	state := uuid.NewString()
	c.SetCookie(oauthStateCookie, state, 600, "/", "", false, true)

	url := a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GoogleOAuth2CallbackHandler exchanges the code and stores the token.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	want, err := c.Cookie(oauthStateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(want), []byte(state)) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

	token, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if err := gcal.SaveToken(a.TokenFile, token); err != nil {
		appLog.Error("saving google token failed", err, "path", a.TokenFile)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		return
	}

	appLog.Info("google calendar authorized", "token_file", a.TokenFile)
	c.JSON(http.StatusOK, gin.H{"message": "Authorization successful"})
}
