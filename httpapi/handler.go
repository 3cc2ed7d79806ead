package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	jaasjwt "github.com/bionicotaku/lingo-utils-jaasjwt"
)

type tokenHandlers struct {
	deps    Deps
	maxBody int64
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *tokenHandlers) issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)

	caller, err := h.deps.Authenticator.Authenticate(ctx, r.Header.Get("Authorization"))
	if err != nil {
		log.Warn().Err(err).Msg("caller rejected")
		writeText(w, http.StatusUnauthorized, "Unauthorized Request")
		return
	}
	ctx = jaasjwt.BindCaller(ctx, caller)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeText(w, http.StatusBadRequest, "Unreadable request body")
		return
	}

	req, err := jaasjwt.DecodeTokenRequest(body)
	if err != nil {
		var reqErr *jaasjwt.Error
		if errors.As(err, &reqErr) {
			log.Info().Err(err).Str("code", string(reqErr.Code)).Msg("token request rejected")
			writeText(w, http.StatusBadRequest, reqErr.Message)
			return
		}
		writeText(w, http.StatusBadRequest, "Invalid request")
		return
	}

	token, err := h.deps.Issuer.IssueToken(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("code", string(jaasjwt.CodeOf(err))).Str("room", req.Room).Msg("error generating JWT")
		writeText(w, http.StatusInternalServerError, "Error generating JWT")
		return
	}

	logTokenIssued(ctx, req)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func logTokenIssued(ctx context.Context, req jaasjwt.TokenRequest) {
	event := zerolog.Ctx(ctx).Info()
	if caller, ok := jaasjwt.CallerFromContext(ctx); ok {
		event = event.Str("caller", caller.Method)
		if caller.Subject != "" {
			event = event.Str("caller_subject", caller.Subject)
		}
	}
	event.
		Str("room", req.Room).
		Str("user_id", req.ID).
		Bool("moderator", bool(req.Moderator)).
		Msg("token issued")
}

func (h *tokenHandlers) preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *tokenHandlers) jwks(w http.ResponseWriter, r *http.Request) {
	set, err := h.deps.Keys.PublicKeys(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("public keys unavailable")
		writeText(w, http.StatusServiceUnavailable, "Keys unavailable")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, set)
}

func (h *tokenHandlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
