package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/cryptox"
	"github.com/firecat-notes/firecat/internal/wire"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// mapError picks the status for a service error and the message the client
// sees. Unexpected errors are reported as internal.
func mapError(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, cryptox.ErrDecryptionFailed):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := mapError(err)
	if code >= 500 {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, wire.Status{Error: msg})
}

// decode reads a JSON body into v. An empty body is allowed when optional
// is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return fmt.Errorf("%w: malformed JSON body: %v", common.ErrInvalidRequest, err)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad %s %q", common.ErrInvalidRequest, name, raw)
	}
	return n, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Ping(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", "error", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request) {
	var req wire.WriteRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.records.Write(r.Context(), req.URI, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Status{Success: true})
}

func (s *Server) readRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Read(r.Context(), r.URL.Query().Get("uri"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ReadResponse{Status: wire.Status{Success: true}, Record: rec})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	entries, p, err := s.records.List(r.Context(), r.URL.Query().Get("uri"), page, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ListResponse{Status: wire.Status{Success: true}, Data: entries, Pagination: p})
}

// deleteRecord accepts a signed proof in the body, a bearer session, or
// both. A bearer token that does not verify is rejected outright.
func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	var req wire.DeleteRequest
	if err := decode(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}

	var sessionPubkey string
	if token, ok := bearerToken(r); ok {
		sub, err := s.wallet.Authenticate(token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		sessionPubkey = sub.Pubkey
	}

	if err := s.records.Delete(r.Context(), r.URL.Query().Get("uri"), req.Proof, sessionPubkey); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Status{Success: true})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req wire.SignupRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.wallet.Signup(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.AuthResponse{Status: wire.Status{Success: true}, Session: sess})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.wallet.Login(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.AuthResponse{Status: wire.Status{Success: true}, Session: sess})
}

func (s *Server) proxyWrite(w http.ResponseWriter, r *http.Request) {
	sub, _ := subjectFrom(r.Context())

	var req wire.ProxyWriteRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.wallet.ProxyWrite(r.Context(), sub, req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Status{Success: true})
}

func (s *Server) proxyRead(w http.ResponseWriter, r *http.Request) {
	sub, _ := subjectFrom(r.Context())

	var req wire.ProxyReadRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, plain, err := s.wallet.ProxyRead(r.Context(), sub, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ProxyReadResponse{Status: wire.Status{Success: true}, Record: rec, Decrypted: plain})
}
