package handler

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"lostfound/model"
	"lostfound/util"
)

// ValidSession requires any logged-in session.
func ValidSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isValidSession(c) {
			return c.Redirect(http.StatusFound, util.BasePath+"/login")
		}
		return next(c)
	}
}

// ValidUserSession requires a session with the user role. Admins browsing
// the posting flow are bounced to the login page like everyone else.
func ValidUserSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isValidSession(c) || currentRole(c) != model.RoleUser {
			return c.Redirect(http.StatusFound, util.BasePath+"/login")
		}
		return next(c)
	}
}

// ValidAdminSession requires a session with the admin role.
func ValidAdminSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isValidSession(c) || currentRole(c) != model.RoleAdmin {
			return c.Redirect(http.StatusFound, util.BasePath+"/admin/login")
		}
		return next(c)
	}
}

func isValidSession(c echo.Context) bool {
	sess, _ := session.Get("session", c)
	username, ok := sess.Values["username"].(string)
	return ok && username != ""
}

// currentUser to get username of logged in user
func currentUser(c echo.Context) string {
	sess, _ := session.Get("session", c)
	username, _ := sess.Values["username"].(string)
	return username
}

func currentRole(c echo.Context) model.Role {
	sess, _ := session.Get("session", c)
	role, _ := sess.Values["role"].(string)
	return model.Role(role)
}

func isAdmin(c echo.Context) bool {
	return currentRole(c) == model.RoleAdmin
}

// setSessionUser stores username and role in the session. Any previous
// state is overwritten.
func setSessionUser(c echo.Context, username string, role model.Role) {
	sess, _ := session.Get("session", c)
	sess.Options = &sessions.Options{
		Path:     util.BasePath + "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}
	sess.Values["username"] = username
	sess.Values["role"] = string(role)
	sess.Save(c.Request(), c.Response())
}

// clearSession to remove current session
func clearSession(c echo.Context) {
	sess, _ := session.Get("session", c)
	sess.Values["username"] = ""
	sess.Values["role"] = ""
	sess.Options = &sessions.Options{
		Path:     util.BasePath + "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	sess.Save(c.Request(), c.Response())
}

// setFlash queues a one-time notice for the next rendered page.
func setFlash(c echo.Context, message string) {
	sess, _ := session.Get("session", c)
	sess.AddFlash(message)
	sess.Save(c.Request(), c.Response())
}

// getFlashes drains the queued notices.
func getFlashes(c echo.Context) []string {
	sess, _ := session.Get("session", c)
	raw := sess.Flashes()
	if len(raw) > 0 {
		sess.Save(c.Request(), c.Response())
	}
	flashes := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			flashes = append(flashes, s)
		}
	}
	return flashes
}
