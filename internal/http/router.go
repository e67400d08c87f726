package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gestionvivienda/subsidios/internal/config"
	httpmiddleware "github.com/gestionvivienda/subsidios/internal/http/middleware"
	"github.com/gestionvivienda/subsidios/internal/postulante"
	"github.com/gestionvivienda/subsidios/internal/programa"
	"github.com/gestionvivienda/subsidios/internal/service"
	"github.com/gestionvivienda/subsidios/internal/usuario"
)

// Handler agrupa las dependencias de los endpoints transversales.
type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	webauthn      *webauthn.WebAuthn
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

const (
	passkeyRegisterSessionPrefix = "webauthn:register:"
	passkeyLoginSessionPrefix    = "webauthn:login:"
	passkeySessionTTL            = 5 * time.Minute
)

// NewRouter devuelve el router configurado con todos los módulos.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService, logger zerolog.Logger) (http.Handler, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthnRPName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     []string{cfg.WebAuthnRPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		webauthn:      wa,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	programaRepo := programa.NewRepository(pool)
	programaService := programa.NewService(programaRepo, redisClient)
	programaHandler := programa.NewHandler(programaService)

	usuarioRepo := usuario.NewRepository(pool)
	usuarioService := usuario.NewService(usuarioRepo)
	usuarioHandler := usuario.NewHandler(usuarioService)

	postulanteRepo := postulante.NewRepository(pool)
	postulanteHandler := postulante.NewHandler(postulanteRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	// Los paneles llaman con barra final al estilo del API original.
	r.Use(chimiddleware.StripSlashes)
	r.Use(httpmiddleware.Logging(logger))
	r.Use(httpmiddleware.Recover(logger))
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(h.publicLimiter.Middleware)

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/passkey/login/start", h.PasskeyLoginStart)
			auth.Post("/passkey/login/finish", h.PasskeyLoginFinish)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(h.authLimiter.Middleware)

		private.Get("/me", h.Me)
		private.Route("/auth/passkey/register", func(pr chi.Router) {
			pr.Post("/start", h.PasskeyRegisterStart)
			pr.Post("/finish", h.PasskeyRegisterFinish)
		})

		private.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.RequireRoles(usuario.RolAdministrador, usuario.RolFuncionario, usuario.RolTecnico))

			api.Route("/programas", programaHandler.RegisterRoutes)
			api.Route("/postulantes", postulanteHandler.RegisterRoutes)

			api.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdministrador)
				admin.Route("/usuarios", usuarioHandler.RegisterRoutes)
			})
		})
	})

	return r, nil
}

// Health responde mientras el proceso está vivo.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready verifica las dependencias externas.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.pool.Ping(ctx); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "base de datos no disponible")
		return
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "redis no disponible")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Login autentica por correo y contraseña.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Correo     string `json:"correo"`
		Contrasena string `json:"contrasena"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	if strings.TrimSpace(payload.Correo) == "" || strings.TrimSpace(payload.Contrasena) == "" {
		WriteError(w, http.StatusBadRequest, "correo y contraseña son obligatorios")
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Correo, payload.Contrasena)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

// Refresh rota el refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteDetail(w, http.StatusUnauthorized, "refresh ausente")
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			WriteDetail(w, http.StatusUnauthorized, "refresh inválido")
			return
		}
		WriteError(w, http.StatusInternalServerError, "error al renovar sesión")
		return
	}

	h.writeLoginSuccess(w, result)
}

// Logout revoca el refresh token actual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := getRefreshFromRequest(r); err == nil {
		_ = h.authService.Logout(r.Context(), token)
	}

	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me devuelve el perfil del usuario autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteDetail(w, http.StatusUnauthorized, "subject inválido")
		return
	}

	profile, roles, err := h.authService.GetMe(r.Context(), subject)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible cargar el perfil")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":  profile,
		"roles": roles,
	})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteDetail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountDisabled):
		WriteDetail(w, http.StatusForbidden, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "error al autenticar")
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Profile,
		"roles":        result.Roles,
	})
}

func (h *Handler) subjectUUID(r *http.Request) (uuid.UUID, error) {
	subjectStr := httpmiddleware.GetSubject(r.Context())
	if strings.TrimSpace(subjectStr) == "" {
		return uuid.Nil, errors.New("subject ausente")
	}
	return uuid.Parse(subjectStr)
}

const refreshCookieName = "refresh_token"

func getRefreshFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
