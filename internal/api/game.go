package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/game"
	"github.com/ashureev/linguapolis/internal/identity"
	"github.com/ashureev/linguapolis/internal/media"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 16 << 10

// GameHandler serves catalog, media and progression endpoints.
type GameHandler struct {
	svc      *game.Service
	resolver *media.Resolver
	stateKey string
}

// NewGameHandler creates a handler over the game service.
func NewGameHandler(svc *game.Service, resolver *media.Resolver, stateKey string) *GameHandler {
	return &GameHandler{svc: svc, resolver: resolver, stateKey: stateKey}
}

// RegisterRoutes registers game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/catalog", h.GetCatalog)
		r.Get("/characters", h.ListCharacters)
		r.Get("/characters/{id}/media", h.GetMedia)
		r.Get("/state", h.GetState)
		r.Post("/select", h.Select)
		r.Post("/quests/{id}/reply", h.Reply)
		r.Post("/quests/{id}/complete", h.Complete)
		r.Post("/reset", h.Reset)
	})
}

type stateResponse struct {
	domain.PlayerState
	NextThreshold int `json:"nextThreshold"`
}

type characterResponse struct {
	domain.Character
	Media media.Media `json:"media"`
}

// GetConfig returns the progression parameters for the frontend.
func (h *GameHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	engine := h.svc.Engine()
	JSON(w, http.StatusOK, map[string]interface{}{
		"xp_curve":    engine.Curve(),
		"default_xp":  engine.RewardXP(),
		"storage_key": h.stateKey,
	})
}

// GetCatalog returns every character and quest.
func (h *GameHandler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := h.svc.Catalog()
	JSON(w, http.StatusOK, map[string]interface{}{
		"characters": cat.Characters(),
		"quests":     cat.Quests(),
	})
}

// ListCharacters returns the selection grid with resolved media.
func (h *GameHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	chars := h.svc.Catalog().Characters()
	keys := make([]string, 0, len(chars))
	for _, ch := range chars {
		keys = append(keys, ch.AvatarKey)
	}
	resolved := h.resolver.ResolveAll(r.Context(), keys, playableFromQuery(r))

	out := make([]characterResponse, 0, len(chars))
	for _, ch := range chars {
		out = append(out, characterResponse{Character: ch, Media: resolved[ch.AvatarKey]})
	}
	JSON(w, http.StatusOK, out)
}

// GetMedia resolves the avatar for one character.
func (h *GameHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.svc.Catalog().Character(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown_character")
		return
	}
	JSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), ch.AvatarKey, playableFromQuery(r)))
}

// GetState returns the caller's progression.
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, ok := h.svc.State(r.Context(), identity.UserIDFromContext(r.Context()))
	if !ok {
		Error(w, http.StatusNotFound, "no_state")
		return
	}
	JSON(w, http.StatusOK, h.withThreshold(state))
}

// Select picks a character and seeds progression.
func (h *GameHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CharacterID string `json:"character_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CharacterID) == "" {
		Error(w, http.StatusBadRequest, "character_id is required")
		return
	}

	state, err := h.svc.Select(r.Context(), identity.UserIDFromContext(r.Context()), strings.TrimSpace(req.CharacterID))
	if err != nil {
		writeGameError(w, err)
		return
	}
	JSON(w, http.StatusOK, h.withThreshold(state))
}

// Reply checks a quest reply for required chunks.
func (h *GameHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := h.svc.Reply(r.Context(), identity.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeGameError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"matched": res.Matched,
		"chunk":   res.Chunk,
		"hint":    res.Hint,
		"applied": res.Applied,
		"state":   h.withThreshold(res.State),
	})
}

// Complete marks a quest complete and applies its reward once.
func (h *GameHandler) Complete(w http.ResponseWriter, r *http.Request) {
	state, applied, err := h.svc.Complete(r.Context(), identity.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeGameError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"applied": applied,
		"state":   h.withThreshold(state),
	})
}

// Reset clears the caller's progression.
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context(), identity.UserIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) withThreshold(state domain.PlayerState) stateResponse {
	return stateResponse{
		PlayerState:   state,
		NextThreshold: h.svc.Engine().Curve().Threshold(state.Level),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrUnknownCharacter):
		Error(w, http.StatusNotFound, "unknown_character")
	case errors.Is(err, game.ErrUnknownQuest):
		Error(w, http.StatusNotFound, "unknown_quest")
	case errors.Is(err, game.ErrNoState):
		Error(w, http.StatusConflict, "no_state")
	default:
		slog.Error("Game request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// playableFromQuery reads ?video=mp4,webm; absent means the server default.
func playableFromQuery(r *http.Request) []string {
	raw := r.URL.Query().Get("video")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
