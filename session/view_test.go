package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseView(t *testing.T) {
	tests := []struct {
		in   string
		want View
	}{
		{"", ViewLanding},
		{"/", ViewLanding},
		{"index.html", ViewLanding},
		{"/login.html", ViewLogin},
		{"/app/dashboard.html", ViewDashboard},
		{"Profile", ViewProfile},
		{"register/", ViewRegister},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseView(tt.in))
		})
	}
}

func TestViewAccess(t *testing.T) {
	assert.True(t, ViewLanding.Public())
	assert.True(t, ViewLogin.Public())
	assert.True(t, ViewRegister.Public())
	assert.False(t, ViewDashboard.Public())

	assert.True(t, ViewDashboard.RequiresAuth())
	assert.True(t, ViewProfile.RequiresAuth())
	assert.False(t, ViewLogin.RequiresAuth())
	assert.False(t, View("about").RequiresAuth())
}

// navigation is a Page that records what happened to it.
type navigation struct {
	current View
	target  View
	alerts  []string
}

func newNavigation(v View) *navigation {
	return &navigation{current: v}
}

func (n *navigation) View() View { return n.current }

func (n *navigation) Redirect(to View) { n.target = to }

func (n *navigation) Alert(msg string) { n.alerts = append(n.alerts, msg) }

func (n *navigation) Redirected() (View, bool) {
	return n.target, n.target != ""
}

func (n *navigation) Alerts() []string { return n.alerts }

func TestNavigation(t *testing.T) {
	nav := newNavigation(ViewDashboard)
	assert.Equal(t, ViewDashboard, nav.View())

	_, ok := nav.Redirected()
	assert.False(t, ok)

	nav.Alert("hello")
	nav.Redirect(ViewLogin)
	to, ok := nav.Redirected()
	assert.True(t, ok)
	assert.Equal(t, ViewLogin, to)
	assert.Equal(t, []string{"hello"}, nav.Alerts())
}
