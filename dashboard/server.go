// Package dashboard serves the trading dashboard over HTTP: page routes
// guarded by the session, JSON actions and a live WebSocket trade feed.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rustyeddy/quantumai/api"
	"github.com/rustyeddy/quantumai/logging"
	"github.com/rustyeddy/quantumai/market"
	"github.com/rustyeddy/quantumai/metrics"
	"github.com/rustyeddy/quantumai/session"
	"github.com/rustyeddy/quantumai/trading"
)

// NoticeHeader carries a session alert on redirects to the login view.
const NoticeHeader = "X-Session-Notice"

const maxBodyBytes = 1 << 16

type Options struct {
	Sessions       *session.Manager
	Trading        *trading.Service
	Tick           time.Duration
	Currency       string
	WhatsAppNumber string
	Logger         *zap.Logger
}

// Server is the local dashboard.
type Server struct {
	sessions *session.Manager
	trading  *trading.Service
	hub      *Hub
	feed     *Feed
	currency string
	whatsapp string
	log      *zap.Logger
	router   chi.Router
}

func NewServer(opts Options) *Server {
	log := logging.OrNop(opts.Logger)
	hub := NewHub(log)

	s := &Server{
		sessions: opts.Sessions,
		trading:  opts.Trading,
		hub:      hub,
		feed:     NewFeed(opts.Trading.Simulator(), hub, opts.Tick, opts.Trading.Start(), log),
		currency: opts.Currency,
		whatsapp: opts.WhatsAppNumber,
		log:      log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Feed() *Feed { return s.feed }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "quantumai"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.publicView(session.ViewLanding))
	r.Get("/login", s.publicView(session.ViewLogin))
	r.Get("/register", s.publicView(session.ViewRegister))
	r.Get("/dashboard", s.handleDashboard)
	r.Get("/profile", s.handleProfile)

	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Post("/change-password", s.handleChangePassword)
	r.Post("/logout", s.handleLogout)
	r.Post("/trade/start", s.handleStartTrade)

	r.Get("/ws", s.hub.HandleWS)
	return r
}

// Run serves on addr with the hub and feed until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)
	go s.feed.Run(ctx)

	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	s.log.Info("shutting down dashboard")
	return srv.Shutdown(shutdownCtx)
}

// httpPage adapts a request to session.Page.
type httpPage struct {
	view     session.View
	redirect session.View
	alerts   []string
}

func (p *httpPage) View() session.View       { return p.view }
func (p *httpPage) Redirect(to session.View) { p.redirect = to }
func (p *httpPage) Alert(msg string)         { p.alerts = append(p.alerts, msg) }

// guard runs session init for view and answers with a redirect when the
// page may not render.
func (s *Server) guard(w http.ResponseWriter, r *http.Request, view session.View) (*httpPage, bool) {
	page := &httpPage{view: view}
	if s.sessions.Init(r.Context(), page) {
		return page, true
	}
	s.redirect(w, r, page)
	return page, false
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, page *httpPage) {
	for _, a := range page.alerts {
		w.Header().Add(NoticeHeader, a)
	}
	to := page.redirect
	if to == "" {
		to = session.ViewLogin
	}
	http.Redirect(w, r, "/"+to.String(), http.StatusSeeOther)
}

type viewResponse struct {
	View   string   `json:"view"`
	Alerts []string `json:"alerts,omitempty"`
}

func (s *Server) publicView(v session.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := s.guard(w, r, v)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, viewResponse{View: v.String(), Alerts: page.alerts})
	}
}

type displayBalances struct {
	Total       string `json:"total_balance"`
	Available   string `json:"available_balance"`
	TotalProfit string `json:"total_profit"`
	TodayProfit string `json:"today_profit"`
}

type dashboardResponse struct {
	viewResponse
	trading.Snapshot
	Display displayBalances `json:"display"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page, ok := s.guard(w, r, session.ViewDashboard)
	if !ok {
		return
	}

	snap, err := s.trading.Snapshot(r.Context())
	if errors.Is(err, trading.ErrNotAuthenticated) {
		page.Alert(session.ExpiredNotice)
		s.redirect(w, r, page)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, api.Failure(err.Error()))
		return
	}

	b := snap.Balances
	writeJSON(w, http.StatusOK, dashboardResponse{
		viewResponse: viewResponse{View: session.ViewDashboard.String(), Alerts: page.alerts},
		Snapshot:     snap,
		Display: displayBalances{
			Total:       market.FormatCurrency(b.Total, s.currency),
			Available:   market.FormatCurrency(b.Available, s.currency),
			TotalProfit: market.FormatSignedCurrency(b.TotalProfit, s.currency),
			TodayProfit: market.FormatSignedCurrency(b.TodayProfit, s.currency),
		},
	})
}

type profileResponse struct {
	viewResponse
	Phone        string           `json:"phone"`
	ReferralCode string           `json:"referral_code,omitempty"`
	User         *api.UserProfile `json:"user,omitempty"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	page, ok := s.guard(w, r, session.ViewProfile)
	if !ok {
		return
	}

	ctx := r.Context()
	user := s.sessions.GetUserData(ctx)
	if user == nil {
		if !s.sessions.IsAuthenticated(ctx) {
			s.redirect(w, r, page)
			return
		}
		user, _ = s.sessions.User(ctx)
	}

	phone, _ := s.sessions.Phone(ctx)
	resp := profileResponse{
		viewResponse: viewResponse{View: session.ViewProfile.String(), Alerts: page.alerts},
		Phone:        market.FormatPhone(phone),
		User:         user,
	}
	if user != nil {
		resp.ReferralCode = user.ReferralCode
	}
	writeJSON(w, http.StatusOK, resp)
}

type credentials struct {
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.sessions.Login(r.Context(), req.Phone, req.Password)
	// The token stays in the session store.
	res.Token = ""
	writeResult(w, res)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.sessions.Register(r.Context(), req.Phone, req.Password, req.ReferralCode)
	writeResult(w, res)
}

type resetResponse struct {
	api.Result
	Support string `json:"support"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.sessions.RequestPasswordReset(r.Context(), req.Phone)
	writeJSON(w, resultStatus(res), resetResponse{
		Result:  res,
		Support: market.WhatsAppLink(s.whatsapp, market.PasswordResetMessage),
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.sessions.ChangePassword(r.Context(), req.OldPassword, req.NewPassword)
	writeResult(w, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.log.Error("logout", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.Failure("Failed to clear session"))
		return
	}
	writeJSON(w, http.StatusOK, api.Result{Success: true})
}

type tradeResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Trade    *api.TradeTicket `json:"trade,omitempty"`
	Estimate string           `json:"estimate,omitempty"`
}

func (s *Server) handleStartTrade(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.trading.StartTrade(r.Context())
	if err != nil {
		var (
			notStarted *trading.NotStartedError
			rejected   *trading.RejectedError
		)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, trading.ErrNotAuthenticated):
			status = http.StatusUnauthorized
		case errors.As(err, &notStarted):
			status = http.StatusConflict
		case errors.As(err, &rejected):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, trading.ErrServer):
			status = http.StatusBadGateway
		}
		writeJSON(w, status, tradeResponse{Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{
		Success:  true,
		Trade:    ticket,
		Estimate: market.FormatCurrency(ticket.EstimatedProfit, s.currency),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", NoticeHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, api.Failure("invalid request body"))
		return false
	}
	return true
}

// resultStatus maps a backend result to an HTTP status.
func resultStatus(res api.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Message == api.NetworkErrorMessage:
		return http.StatusBadGateway
	case res.Message == session.NotAuthMessage || res.Message == session.ExpiredNotice:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func writeResult(w http.ResponseWriter, res api.Result) {
	writeJSON(w, resultStatus(res), res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
