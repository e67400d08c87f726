package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestionvivienda/subsidios/internal/auth"
	"github.com/gestionvivienda/subsidios/internal/db"
	"github.com/gestionvivienda/subsidios/internal/usuario"
)

// Audience única del panel administrativo.
const Audience = "backoffice"

var (
	// ErrInvalidCredentials indica fallo de autenticación.
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	// ErrAccountDisabled indica cuenta inactiva.
	ErrAccountDisabled = errors.New("cuenta inactiva")
	// ErrRefreshInvalid indica refresh token inválido o expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
)

type usuarioRepository interface {
	GetByCorreo(ctx context.Context, correo string) (*usuario.Usuario, error)
	GetByID(ctx context.Context, id uuid.UUID) (*usuario.Usuario, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra las reglas de autenticación y sesiones.
type AuthService struct {
	usuarios   usuarioRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	pool       *pgxpool.Pool
}

func NewAuthService(usuarios usuarioRepository, pool *pgxpool.Pool, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{usuarios: usuarios, pool: pool, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expone el gestor de JWT para los middlewares.
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Profile describe al usuario autenticado.
type Profile struct {
	ID        string `json:"id"`
	Nombre    string `json:"nombre"`
	Apellidos string `json:"apellidos"`
	Correo    string `json:"correo"`
	Rol       string `json:"rol"`
}

// LoginResult representa el retorno estándar de las autenticaciones.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Roles         []string
	Profile       *Profile
	RefreshHash   string
	RefreshExpiry time.Time
}

// PasskeyCredential guarda una credencial WebAuthn de un usuario.
type PasskeyCredential struct {
	ID           uuid.UUID
	UsuarioID    uuid.UUID
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	Transports   []string
	AAGUID       []byte
	Nickname     *string
	Cloned       bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// ErrPasskeyNotFound indica credencial inexistente.
var ErrPasskeyNotFound = errors.New("credencial no encontrada")

// Login autentica a un usuario del sistema por correo y contraseña.
func (s *AuthService) Login(ctx context.Context, correo, contrasena string) (*LoginResult, error) {
	user, err := s.usuarios.GetByCorreo(ctx, strings.ToLower(correo))
	if err != nil {
		if errors.Is(err, usuario.ErrNotFound) {
			log.Warn().Msg("login: usuario no encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(contrasena, user.ContrasenaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificación de contraseña falló")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: contraseña inválida")
		return nil, ErrInvalidCredentials
	}

	return s.loginFromUsuario(ctx, user)
}

// LoginWithUsuario emite tokens para un usuario ya verificado (flujo passkey).
func (s *AuthService) LoginWithUsuario(ctx context.Context, user *usuario.Usuario) (*LoginResult, error) {
	return s.loginFromUsuario(ctx, user)
}

func (s *AuthService) loginFromUsuario(ctx context.Context, user *usuario.Usuario) (*LoginResult, error) {
	if user.Estado != usuario.EstadoActivo {
		return nil, ErrAccountDisabled
	}

	roles := []string{user.Rol}
	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), Audience, roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       user.ID,
		Roles:         roles,
		Profile:       profileFromUsuario(user),
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
	}, nil
}

// Refresh rota el refresh token y emite nuevos tokens.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)

	var (
		subject    uuid.UUID
		expiracion time.Time
		revocado   bool
	)
	err := s.pool.QueryRow(ctx, `
        SELECT subject, expiracion, revocado
        FROM refresh_tokens
        WHERE token_hash = $1
    `, hash).Scan(&subject, &expiracion, &revocado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if revocado || time.Now().UTC().After(expiracion) {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(Audience, hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	user, err := s.usuarios.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, usuario.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	result, err := s.loginFromUsuario(ctx, user)
	if err != nil {
		return nil, err
	}

	// Revoca el token anterior (DB + Redis).
	if err := s.revokeRefresh(ctx, hash); err != nil {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoca el refresh token actual.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.revokeRefresh(ctx, hash); err != nil {
		return err
	}
	redisKey := auth.RefreshRedisKey(Audience, hash)
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe devuelve el perfil y roles del subject autenticado.
func (s *AuthService) GetMe(ctx context.Context, subject uuid.UUID) (*Profile, []string, error) {
	user, err := s.usuarios.GetByID(ctx, subject)
	if err != nil {
		return nil, nil, err
	}
	return profileFromUsuario(user), []string{user.Rol}, nil
}

// GetUsuarioByCorreo expone la búsqueda por correo (flujo passkey).
func (s *AuthService) GetUsuarioByCorreo(ctx context.Context, correo string) (*usuario.Usuario, error) {
	return s.usuarios.GetByCorreo(ctx, strings.ToLower(correo))
}

// GetUsuarioByID expone la búsqueda por ID (flujo passkey).
func (s *AuthService) GetUsuarioByID(ctx context.Context, id uuid.UUID) (*usuario.Usuario, error) {
	return s.usuarios.GetByID(ctx, id)
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	// Alta del token nuevo y revocación del resto en la misma
	// transacción: una sesión activa por usuario.
	err := db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO refresh_tokens (id, subject, token_hash, expiracion, creado_en)
            VALUES ($1, $2, $3, $4, now())
        `, uuid.New(), subject, hash, expires); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            UPDATE refresh_tokens
            SET revocado = true
            WHERE subject = $1 AND token_hash <> $2 AND revocado = false
        `, subject, hash)
		return err
	})
	if err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(Audience, hash), "active", time.Until(expires)).Err()
}

func (s *AuthService) revokeRefresh(ctx context.Context, hash string) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE refresh_tokens SET revocado = true WHERE token_hash = $1
    `, hash)
	return err
}

func profileFromUsuario(u *usuario.Usuario) *Profile {
	return &Profile{
		ID:        u.ID.String(),
		Nombre:    u.Nombre,
		Apellidos: u.Apellidos,
		Correo:    u.Correo,
		Rol:       u.Rol,
	}
}

// ListPasskeys devuelve las credenciales WebAuthn de un usuario.
func (s *AuthService) ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]PasskeyCredential, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, nickname, cloned, created_at, updated_at
        FROM webauthn_credentials
        WHERE usuario_id = $1
        ORDER BY created_at DESC
    `, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []PasskeyCredential
	for rows.Next() {
		var (
			cred PasskeyCredential
			sign int64
		)
		if err := rows.Scan(&cred.ID, &cred.UsuarioID, &cred.CredentialID, &cred.PublicKey, &sign, &cred.Transports, &cred.AAGUID, &cred.Nickname, &cred.Cloned, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
			return nil, err
		}
		if sign < 0 {
			sign = 0
		}
		cred.SignCount = uint32(sign)
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return creds, nil
}

// GetPasskeyByCredentialID busca una credencial por su identificador WebAuthn.
func (s *AuthService) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error) {
	var (
		cred PasskeyCredential
		sign int64
	)
	err := s.pool.QueryRow(ctx, `
        SELECT id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, nickname, cloned, created_at, updated_at
        FROM webauthn_credentials
        WHERE credential_id = $1
    `, credentialID).Scan(&cred.ID, &cred.UsuarioID, &cred.CredentialID, &cred.PublicKey, &sign, &cred.Transports, &cred.AAGUID, &cred.Nickname, &cred.Cloned, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPasskeyNotFound
		}
		return nil, err
	}
	if sign < 0 {
		sign = 0
	}
	cred.SignCount = uint32(sign)
	return &cred, nil
}

// CreatePasskey registra una credencial WebAuthn nueva.
func (s *AuthService) CreatePasskey(ctx context.Context, usuarioID uuid.UUID, credentialID, publicKey []byte, signCount uint32, transports []string, aaguid []byte, nickname *string, cloned bool) (*PasskeyCredential, error) {
	var (
		cred    PasskeyCredential
		signVal int64
	)
	err := s.pool.QueryRow(ctx, `
        INSERT INTO webauthn_credentials (usuario_id, credential_id, public_key, sign_count, transports, aaguid, nickname, cloned)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, nickname, cloned, created_at, updated_at
    `, usuarioID, credentialID, publicKey, int64(signCount), transports, aaguid, nickname, cloned).Scan(
		&cred.ID,
		&cred.UsuarioID,
		&cred.CredentialID,
		&cred.PublicKey,
		&signVal,
		&cred.Transports,
		&cred.AAGUID,
		&cred.Nickname,
		&cred.Cloned,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if signVal < 0 {
		signVal = 0
	}
	cred.SignCount = uint32(signVal)
	return &cred, nil
}

// UpdatePasskeyCounter actualiza el contador de firmas tras cada uso.
func (s *AuthService) UpdatePasskeyCounter(ctx context.Context, credentialID uuid.UUID, signCount uint32, cloned bool) error {
	cmd, err := s.pool.Exec(ctx, `
        UPDATE webauthn_credentials
        SET sign_count = $2, cloned = $3, updated_at = now()
        WHERE id = $1
    `, credentialID, int64(signCount), cloned)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPasskeyNotFound
	}
	return nil
}

// DeletePasskey elimina una credencial del usuario.
func (s *AuthService) DeletePasskey(ctx context.Context, usuarioID, credentialID uuid.UUID) error {
	cmd, err := s.pool.Exec(ctx, `
        DELETE FROM webauthn_credentials WHERE id = $1 AND usuario_id = $2
    `, credentialID, usuarioID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPasskeyNotFound
	}
	return nil
}
