package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"i4.energy/across/bg95/at"
	"i4.energy/across/bg95/command"
	"i4.energy/across/bg95/modem"
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *slog.Logger
	Modem  *modem.Modem
	// Limiter throttles requests before they queue for the serial link.
	// A nil Limiter admits everything.
	Limiter *rate.Limiter
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Limiter != nil && !s.Limiter.Allow() {
		s.sendError(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /signal", s.handleSignal)
	mux.HandleFunc("GET /sim", s.handleSIM)
	mux.HandleFunc("GET /operator", s.handleOperator)
	mux.HandleFunc("POST /sms", s.handleSMS)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to encode response", "error", err)
	}
}

// modemError maps a modem failure to an HTTP status.
func (s *Server) modemError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, at.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, modem.ErrCommandRejected):
		status = http.StatusBadGateway
	case errors.Is(err, modem.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, modem.ErrAlreadyClosed):
		status = http.StatusServiceUnavailable
	}
	s.Logger.Error("Modem request failed", "op", op, "error", err)
	s.sendError(w, err.Error(), status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Modem.SendCommand(r.Context(), command.AT, at.Execute, nil, nil); err != nil {
		s.modemError(w, "health", err)
		return
	}
	s.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	sig, err := s.Modem.SignalQuality(r.Context())
	if err != nil {
		s.modemError(w, "signal", err)
		return
	}

	type SignalResponse struct {
		RSSI *int `json:"rssi,omitempty"`
		BER  *int `json:"ber,omitempty"`
		DBm  *int `json:"dbm,omitempty"`
	}
	var resp SignalResponse
	if sig.Present.Has(command.SignalRSSI) {
		resp.RSSI = &sig.RSSI
	}
	if dbm, ok := sig.DBm(); ok {
		resp.DBm = &dbm
	}
	if sig.BERKnown() {
		resp.BER = &sig.BER
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleSIM(w http.ResponseWriter, r *http.Request) {
	status, err := s.Modem.SIMStatus(r.Context())
	if err != nil {
		s.modemError(w, "sim", err)
		return
	}
	s.sendJSON(w, map[string]string{"status": status.String()}, http.StatusOK)
}

func (s *Server) handleOperator(w http.ResponseWriter, r *http.Request) {
	op, err := s.Modem.CurrentOperator(r.Context())
	if err != nil {
		s.modemError(w, "operator", err)
		return
	}

	type OperatorResponse struct {
		Mode   string `json:"mode"`
		Name   string `json:"name,omitempty"`
		Access string `json:"access,omitempty"`
	}
	resp := OperatorResponse{Mode: op.Mode.String()}
	if op.Present.Has(command.OperatorHasName) {
		resp.Name = op.Name
	}
	if op.Present.Has(command.OperatorHasAccess) {
		resp.Access = op.Access.String()
	}
	s.sendJSON(w, resp, http.StatusOK)
}

// handleSMS processes incoming HTTP POST requests to send SMS messages
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	type SMSRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}

	ref, err := s.Modem.SendSMS(r.Context(), req.To, req.Message)
	if err != nil {
		s.modemError(w, "sms", err)
		return
	}

	s.Logger.Info("SMS sent successfully", "to", req.To, "message_length", len(req.Message), "reference", ref)
	s.sendJSON(w, map[string]int{"reference": ref}, http.StatusOK)
}
