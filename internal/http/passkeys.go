package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestionvivienda/subsidios/internal/service"
	"github.com/gestionvivienda/subsidios/internal/usuario"
)

// PasskeyRegisterStart inicia el registro WebAuthn del usuario autenticado.
func (h *Handler) PasskeyRegisterStart(w http.ResponseWriter, r *http.Request) {
	userID, err := h.subjectUUID(r)
	if err != nil {
		WriteDetail(w, http.StatusUnauthorized, "identificación inválida")
		return
	}

	ctx := r.Context()
	user, err := h.authService.GetUsuarioByID(ctx, userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible cargar el usuario")
		return
	}

	passkeys, err := h.authService.ListPasskeys(ctx, userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible cargar las credenciales")
		return
	}

	waUser := newWebAuthnUser(user, passkeys)

	exclusions := make([]protocol.CredentialDescriptor, 0, len(waUser.WebAuthnCredentials()))
	for _, cred := range waUser.WebAuthnCredentials() {
		exclusions = append(exclusions, cred.Descriptor())
	}

	selection := protocol.AuthenticatorSelection{UserVerification: protocol.VerificationRequired}

	opts, sessionData, err := h.webauthn.BeginRegistration(
		waUser,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(selection),
	)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := uuid.NewString()
	if err := h.storeWebauthnSession(ctx, passkeyRegisterSessionPrefix, sessionID, sessionData, userID); err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible preparar el registro")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session": sessionID,
		"options": map[string]any{"publicKey": opts.Response},
	})
}

// PasskeyRegisterFinish valida la atestación y guarda la credencial.
func (h *Handler) PasskeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "session ausente")
		return
	}

	ctx := r.Context()
	sessionData, userID, err := h.consumeWebauthnSession(ctx, passkeyRegisterSessionPrefix, sessionID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "sesión inválida o expirada")
		return
	}

	user, err := h.authService.GetUsuarioByID(ctx, userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "usuario no encontrado")
		return
	}

	passkeys, err := h.authService.ListPasskeys(ctx, userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible cargar las credenciales")
		return
	}

	waUser := newWebAuthnUser(user, passkeys)

	creationResponse, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "respuesta inválida")
		return
	}

	credential, err := h.webauthn.CreateCredential(waUser, *sessionData, creationResponse)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, transport := range credential.Transport {
		transports = append(transports, string(transport))
	}

	if _, err := h.authService.CreatePasskey(
		ctx,
		userID,
		credential.ID,
		credential.PublicKey,
		credential.Authenticator.SignCount,
		transports,
		credential.Authenticator.AAGUID,
		nil,
		credential.Authenticator.CloneWarning,
	); err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible guardar la credencial")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// PasskeyLoginStart prepara la autenticación WebAuthn por correo.
func (h *Handler) PasskeyLoginStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Correo string `json:"correo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if strings.TrimSpace(payload.Correo) == "" {
		WriteError(w, http.StatusBadRequest, "correo es obligatorio")
		return
	}

	ctx := r.Context()
	user, err := h.authService.GetUsuarioByCorreo(ctx, payload.Correo)
	if err != nil {
		if errors.Is(err, usuario.ErrNotFound) {
			WriteDetail(w, http.StatusUnauthorized, "credencial no configurada")
			return
		}
		WriteError(w, http.StatusInternalServerError, "no fue posible preparar la autenticación")
		return
	}

	passkeys, err := h.authService.ListPasskeys(ctx, user.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible preparar la autenticación")
		return
	}
	if len(passkeys) == 0 {
		WriteDetail(w, http.StatusUnauthorized, "credencial no configurada")
		return
	}

	waUser := newWebAuthnUser(user, passkeys)

	opts, sessionData, err := h.webauthn.BeginLogin(waUser)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := uuid.NewString()
	if err := h.storeWebauthnSession(ctx, passkeyLoginSessionPrefix, sessionID, sessionData, user.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible preparar la autenticación")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session": sessionID,
		"options": map[string]any{"publicKey": opts.Response},
	})
}

// PasskeyLoginFinish valida la aserción y emite tokens.
func (h *Handler) PasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "session ausente")
		return
	}

	ctx := r.Context()
	sessionData, userID, err := h.consumeWebauthnSession(ctx, passkeyLoginSessionPrefix, sessionID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "sesión inválida o expirada")
		return
	}

	user, err := h.authService.GetUsuarioByID(ctx, userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "usuario no encontrado")
		return
	}

	passkeys, err := h.authService.ListPasskeys(ctx, user.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible validar la credencial")
		return
	}

	waUser := newWebAuthnUser(user, passkeys)

	assertionResponse, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "respuesta inválida")
		return
	}

	credential, err := h.webauthn.ValidateLogin(waUser, *sessionData, assertionResponse)
	if err != nil {
		WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}

	stored, err := h.authService.GetPasskeyByCredentialID(ctx, credential.ID)
	if err != nil {
		WriteDetail(w, http.StatusUnauthorized, "credencial desconocida")
		return
	}
	if stored.UsuarioID != user.ID {
		WriteDetail(w, http.StatusUnauthorized, "credencial inválida")
		return
	}

	if err := h.authService.UpdatePasskeyCounter(ctx, stored.ID, credential.Authenticator.SignCount, credential.Authenticator.CloneWarning); err != nil {
		WriteError(w, http.StatusInternalServerError, "no fue posible actualizar la credencial")
		return
	}

	result, err := h.authService.LoginWithUsuario(ctx, user)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

type webauthnSessionEnvelope struct {
	Session *webauthn.SessionData `json:"session"`
	UserID  string                `json:"user_id"`
}

func (h *Handler) storeWebauthnSession(ctx context.Context, prefix, sessionID string, data *webauthn.SessionData, userID uuid.UUID) error {
	envelope := webauthnSessionEnvelope{Session: data, UserID: userID.String()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return h.redis.Set(ctx, prefix+sessionID, payload, passkeySessionTTL).Err()
}

func (h *Handler) consumeWebauthnSession(ctx context.Context, prefix, sessionID string) (*webauthn.SessionData, uuid.UUID, error) {
	key := prefix + sessionID
	raw, err := h.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, uuid.Nil, errors.New("sesión no encontrada")
		}
		return nil, uuid.Nil, err
	}
	_ = h.redis.Del(ctx, key)

	var envelope webauthnSessionEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, uuid.Nil, err
	}
	userID, err := uuid.Parse(envelope.UserID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return envelope.Session, userID, nil
}

type webAuthnUser struct {
	id          uuid.UUID
	name        string
	displayName string
	credentials []webauthn.Credential
}

func newWebAuthnUser(user *usuario.Usuario, passkeys []service.PasskeyCredential) *webAuthnUser {
	return &webAuthnUser{
		id:          user.ID,
		name:        user.Correo,
		displayName: user.NombreCompleto(),
		credentials: toWebauthnCredentials(passkeys),
	}
}

func (u *webAuthnUser) WebAuthnID() []byte {
	id := make([]byte, 16)
	copy(id, u.id[:])
	return id
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.name
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	return u.displayName
}

func (u *webAuthnUser) WebAuthnIcon() string {
	return ""
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func toWebauthnCredentials(passkeys []service.PasskeyCredential) []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(passkeys))
	for _, pk := range passkeys {
		cred := webauthn.Credential{
			ID:        append([]byte(nil), pk.CredentialID...),
			PublicKey: append([]byte(nil), pk.PublicKey...),
			Transport: toAuthenticatorTransports(pk.Transports),
		}
		cred.Authenticator.SignCount = pk.SignCount
		cred.Authenticator.CloneWarning = pk.Cloned
		if len(pk.AAGUID) > 0 {
			cred.Authenticator.AAGUID = append([]byte(nil), pk.AAGUID...)
		}
		creds = append(creds, cred)
	}
	return creds
}

func toAuthenticatorTransports(values []string) []protocol.AuthenticatorTransport {
	if len(values) == 0 {
		return nil
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(values))
	for _, value := range values {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "usb":
			transports = append(transports, protocol.USB)
		case "nfc":
			transports = append(transports, protocol.NFC)
		case "ble":
			transports = append(transports, protocol.BLE)
		case "internal":
			transports = append(transports, protocol.Internal)
		case "smart-card":
			transports = append(transports, protocol.SmartCard)
		case "hybrid", "cable":
			transports = append(transports, protocol.Hybrid)
		default:
			transports = append(transports, protocol.AuthenticatorTransport(value))
		}
	}
	return transports
}
