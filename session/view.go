package session

import "strings"

// View names a screen of the front end.
type View string

const (
	ViewLanding   View = "index"
	ViewLogin     View = "login"
	ViewRegister  View = "register"
	ViewDashboard View = "dashboard"
	ViewProfile   View = "profile"
)

// ParseView maps a path such as "/dashboard.html" or "login" to a View.
// The empty path is the landing view.
func ParseView(path string) View {
	s := strings.Trim(path, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".html")
	if s == "" {
		return ViewLanding
	}
	return View(strings.ToLower(s))
}

// Public reports whether v is reachable without signing in.
func (v View) Public() bool {
	switch v {
	case ViewLanding, ViewLogin, ViewRegister:
		return true
	}
	return false
}

// RequiresAuth reports whether loading v must check the session.
func (v View) RequiresAuth() bool {
	return v == ViewDashboard || v == ViewProfile
}

func (v View) String() string { return string(v) }

// Page is the host rendering a view: the CLI or an HTTP request.
type Page interface {
	View() View
	Redirect(to View)
	Alert(msg string)
}
