package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NetworkErrorMessage is shown whenever the backend cannot be reached.
const NetworkErrorMessage = "Network error. Please try again."

var (
	// ErrTransport marks failures to reach the backend or read its reply.
	ErrTransport = errors.New("transport failure")

	// ErrUnauthorized is returned when the backend answers 401.
	ErrUnauthorized = errors.New("unauthorized")
)

// TransportError wraps a network or decoding failure for one call.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func transportErr(path string, err error) error {
	return &TransportError{Path: path, Err: err}
}

// StatusError is a non-2xx reply that carries no usable body.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Path, e.StatusCode, e.Body)
}

// Result is the common reply shape of the backend's POST calls.
type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token,omitempty"`
	User    json.RawMessage `json:"user,omitempty"`
	Trade   *TradeTicket    `json:"trade,omitempty"`
}

// NetworkFailure is the local stand-in reply for a transport failure.
func NetworkFailure() Result {
	return Result{Success: false, Message: NetworkErrorMessage}
}

// Failure builds a local failure reply with msg.
func Failure(msg string) Result {
	return Result{Success: false, Message: msg}
}

// TradeTicket is the backend's acknowledgement of a started trade.
type TradeTicket struct {
	Pair            string  `json:"pair"`
	EstimatedProfit float64 `json:"estimated_profit"`
}

// UserProfile is the subset of the user record the dashboard renders. The
// full record is kept verbatim in Raw.
type UserProfile struct {
	Phone            string  `json:"phone,omitempty"`
	TotalBalance     float64 `json:"total_balance"`
	AvailableBalance float64 `json:"available_balance"`
	TotalProfit      float64 `json:"total_profit"`
	TodayProfit      float64 `json:"today_profit"`
	ReferralCode     string  `json:"referral_code,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p *UserProfile) UnmarshalJSON(b []byte) error {
	type plain UserProfile
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = UserProfile(v)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes Raw back out when present so the record survives a
// round trip through the session store unchanged.
func (p UserProfile) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type plain UserProfile
	return json.Marshal(plain(p))
}

// ParseUser decodes a stored user record. Empty or "null" input yields nil.
func ParseUser(raw []byte) (*UserProfile, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &p, nil
}
