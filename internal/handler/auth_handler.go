package handler

import (
	"net/http"
	"time"

	"studio-management-api/internal/auth"
	"studio-management-api/internal/core"
	"studio-management-api/internal/middleware"
)

const refreshTokenTTL = 7 * 24 * time.Hour

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}

	// self-registration is always a client account
	u, err := h.core.CreateUser(r.Context(), core.CreateUserInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		Phone:    body.Phone,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	tok, err := auth.MakeToken(u.ID, string(u.Role), h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": u.ID, "token": tok})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &body); err != nil || body.Email == "" || body.Password == "" {
		badRequest(w, "email and password required")
		return
	}

	u, err := h.core.UserByEmail(r.Context(), body.Email)
	if err != nil || !auth.CheckPassword(u.PasswordHash, body.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	accessTok, err := auth.MakeToken(u.ID, string(u.Role), h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rawRefresh, tokenHash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.store.CreateRefreshToken(r.Context(), u.ID, tokenHash, time.Now().Add(refreshTokenTTL)); err != nil {
		h.writeError(w, err)
		return
	}

	setAuthCookies(w, accessTok, rawRefresh)
	writeJSON(w, http.StatusOK, map[string]string{
		"userId": u.ID,
		"name":   u.Name,
		"role":   string(u.Role),
		"token":  accessTok,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("refresh_token")
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing refresh token"})
		return
	}

	rt, err := h.store.GetRefreshTokenByHash(r.Context(), auth.HashRefreshToken(c.Value))
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	u, err := h.core.UserByID(r.Context(), rt.UserID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	newRaw, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.store.RotateRefreshToken(r.Context(), rt.ID, rt.UserID, newHash, time.Now().Add(refreshTokenTTL)); err != nil {
		h.writeError(w, err)
		return
	}
	accessTok, err := auth.MakeToken(u.ID, string(u.Role), h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}

	setAuthCookies(w, accessTok, newRaw)
	writeJSON(w, http.StatusOK, map[string]string{"token": accessTok})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	if err := h.store.RevokeAllRefreshTokens(r.Context(), uid); err != nil {
		h.writeError(w, err)
		return
	}
	clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func setAuthCookies(w http.ResponseWriter, accessTok, rawRefresh string) {
	http.SetCookie(w, &http.Cookie{
		Name: "access_token", Value: accessTok,
		HttpOnly: true, Path: "/", SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refresh_token", Value: rawRefresh,
		HttpOnly: true, Path: "/auth/", SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/auth/", MaxAge: -1})
}
