package sdk

import (
	"context"
	"strings"
)

// Role es el rol efectivo dentro de un panel. Los roles del servidor se
// proyectan sobre estos tres: ADMINISTRADOR pasa a ADMIN, FUNCIONARIO y
// TECNICO pasan a FUNCIONARIO, y cualquier otra cosa queda VISITANTE.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleFuncionario Role = "FUNCIONARIO"
	RoleVisitante   Role = "VISITANTE"
)

func roleFromServer(rol string) Role {
	switch strings.ToUpper(strings.TrimSpace(rol)) {
	case "ADMINISTRADOR":
		return RoleAdmin
	case "FUNCIONARIO", "TECNICO":
		return RoleFuncionario
	default:
		return RoleVisitante
	}
}

// Session es el resultado de un login correcto.
type Session struct {
	ID     string
	Nombre string
	Email  string
	Role   Role
	Token  string
}

type loginRequest struct {
	Correo     string `json:"correo"`
	Contrasena string `json:"contrasena"`
}

type loginResponse struct {
	AccessToken string   `json:"access_token"`
	User        struct {
		ID        string `json:"id"`
		Nombre    string `json:"nombre"`
		Apellidos string `json:"apellidos"`
		Correo    string `json:"correo"`
		Rol       string `json:"rol"`
	} `json:"user"`
	Roles []string `json:"roles"`
}

// Login intercambia credenciales por una sesión y deja el token puesto
// en el cliente para las llamadas siguientes.
func Login(ctx context.Context, client *Client, correo, contrasena string) (*Session, error) {
	var out loginResponse
	err := client.Do(ctx, "POST", "/auth/login", loginRequest{Correo: correo, Contrasena: contrasena}, nil, &out)
	if err != nil {
		return nil, err
	}

	role := RoleVisitante
	for _, r := range out.Roles {
		if mapped := roleFromServer(r); mapped != RoleVisitante {
			role = mapped
			break
		}
	}
	if role == RoleVisitante && out.User.Rol != "" {
		role = roleFromServer(out.User.Rol)
	}

	client.SetToken(out.AccessToken)

	nombre := strings.TrimSpace(out.User.Nombre + " " + out.User.Apellidos)
	return &Session{
		ID:     out.User.ID,
		Nombre: nombre,
		Email:  out.User.Correo,
		Role:   role,
		Token:  out.AccessToken,
	}, nil
}

// AfterLogin resuelve el destino tras autenticarse: la ruta que el guard
// recordó en ReturnTo, o la raíz del panel si no había ninguna.
func AfterLogin(decision GuardDecision) string {
	if decision.ReturnTo != "" {
		return decision.ReturnTo
	}
	return "/"
}

// Logout cierra la sesión en el servidor y limpia el token del cliente.
func Logout(ctx context.Context, client *Client) error {
	err := client.Do(ctx, "POST", "/auth/logout", nil, nil, nil)
	client.SetToken("")
	return err
}

// GuardDecision es el veredicto del guard sobre una navegación.
type GuardDecision struct {
	Allowed bool
	// Location es el destino de la redirección cuando Allowed es falso.
	Location string
	// ReturnTo conserva la ruta pedida para volver tras el login.
	ReturnTo string
}

// GuardRule asocia un prefijo de ruta con los roles que pueden entrar.
type GuardRule struct {
	Prefix string
	Roles  []Role
}

// Guard decide navegaciones de un panel según la sesión vigente. Sin
// sesión manda a /login recordando a dónde se iba; con sesión pero sin
// rol suficiente manda a la raíz.
type Guard struct {
	rules []GuardRule
}

// DefaultGuardRules refleja el reparto del panel: usuarios es solo de
// ADMIN, el resto es para cualquier rol de plantilla.
func DefaultGuardRules() []GuardRule {
	return []GuardRule{
		{Prefix: "/usuarios", Roles: []Role{RoleAdmin}},
		{Prefix: "/programas", Roles: []Role{RoleAdmin, RoleFuncionario}},
		{Prefix: "/postulantes", Roles: []Role{RoleAdmin, RoleFuncionario}},
		{Prefix: "/", Roles: []Role{RoleAdmin, RoleFuncionario}},
	}
}

func NewGuard(rules []GuardRule) *Guard {
	if rules == nil {
		rules = DefaultGuardRules()
	}
	return &Guard{rules: rules}
}

// Check evalúa la ruta contra las reglas. La primera regla cuyo prefijo
// coincide gana; una ruta sin regla se trata como prohibida.
func (g *Guard) Check(session *Session, path string) GuardDecision {
	if session == nil || session.Token == "" {
		return GuardDecision{Location: "/login", ReturnTo: path}
	}

	for _, rule := range g.rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		for _, role := range rule.Roles {
			if session.Role == role {
				return GuardDecision{Allowed: true}
			}
		}
		return GuardDecision{Location: "/"}
	}
	return GuardDecision{Location: "/"}
}
