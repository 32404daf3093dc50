package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ding-server/auth"
	"ding-server/config"
	"ding-server/room"
	"ding-server/storage"
)

const bearerPrefix = "Bearer "

// Handler holds dependencies for API handlers.
type Handler struct {
	Config *config.Config
	Store  storage.DocStore
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, store storage.DocStore) *Handler {
	return &Handler{
		Config: cfg,
		Store:  store,
	}
}

// Router builds the REST surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms/{code}/log", h.RoomLog)
		r.Get("/profile", h.Profile)
		r.Post("/profile/push-token", h.RegisterPushToken)
		r.Post("/profile/nickname", h.SetNickname)
	})
	return r
}

// corsMiddleware sets CORS headers and answers preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractUserID validates the Authorization header and returns the user ID, or empty string on failure.
func (h *Handler) extractUserID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	claims, err := auth.ValidateToken(h.Config.AuthBaseURL, token)
	if err != nil {
		return ""
	}
	return auth.UserIDFromClaims(claims)
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// RoomLog returns the persisted log for a room, oldest first.
func (h *Handler) RoomLog(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeRoomCode(chi.URLParam(r, "code"))
	if code == "" {
		http.Error(w, "room code required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Store.ListRoomLog(r.Context(), code, limit)
	if err != nil {
		log.Printf("ListRoomLog: %v", err)
		http.Error(w, "failed to load room log", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Printf("Encode room log response: %v", err)
	}
}

// Profile returns the authenticated user's profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	profile, err := h.Store.GetProfile(r.Context(), userID)
	if err != nil {
		log.Printf("GetProfile: %v", err)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		profile = &storage.Profile{UserID: userID, PushTokens: []string{}, Nicknames: map[string]string{}}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(profile); err != nil {
		log.Printf("Encode profile response: %v", err)
	}
}

// RegisterPushToken stores a device push token on the user's profile.
func (h *Handler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Token) == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}
	if err := h.Store.AddPushToken(r.Context(), userID, strings.TrimSpace(body.Token)); err != nil {
		log.Printf("AddPushToken: %v", err)
		http.Error(w, "failed to save push token", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetNickname stores the user's per-room nickname.
func (h *Handler) SetNickname(w http.ResponseWriter, r *http.Request) {
	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	var body struct {
		RoomCode string `json:"roomCode"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	code := room.NormalizeRoomCode(body.RoomCode)
	nickname := strings.TrimSpace(body.Nickname)
	if code == "" {
		http.Error(w, "roomCode required", http.StatusBadRequest)
		return
	}
	if len(nickname) > h.Config.MaxNameLength {
		nickname = nickname[:h.Config.MaxNameLength]
	}
	if err := h.Store.SetNickname(r.Context(), userID, code, nickname); err != nil {
		log.Printf("SetNickname: %v", err)
		http.Error(w, "failed to save nickname", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
