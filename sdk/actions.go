package sdk

// Action es una operación que un panel puede ofrecer sobre una fila.
type Action struct {
	Name    string
	Label   string
	Enabled bool
}

// Acciones disponibles por estado de programa. El mapa es cerrado: un
// estado desconocido no ofrece nada, y ninguna transición ilegal
// aparece jamás como acción.
var programaActions = map[string][]Action{
	EstadoBorrador: {
		{Name: "gestionar_etapas", Label: "Gestionar etapas", Enabled: true},
		// Publicar exige etapas configuradas; el botón existe pero
		// queda apagado hasta que la activación esté soportada.
		{Name: "publicar", Label: "Publicar", Enabled: false},
	},
	EstadoActivo: {
		{Name: "gestionar_etapas", Label: "Gestionar etapas", Enabled: true},
		{Name: "inhabilitar", Label: "Inhabilitar", Enabled: true},
	},
	EstadoInhabilitado: {
		{Name: "rehabilitar", Label: "Rehabilitar", Enabled: true},
	},
}

// ProgramaActions devuelve las acciones que corresponden al estado.
// La copia evita que el llamador mute la tabla.
func ProgramaActions(estado string) []Action {
	actions, ok := programaActions[estado]
	if !ok {
		return nil
	}
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// ProgramaEstadoDestino traduce la acción de cambio de estado al estado
// que hay que mandar al servidor.
func ProgramaEstadoDestino(action string) (string, bool) {
	switch action {
	case "inhabilitar":
		return EstadoInhabilitado, true
	case "rehabilitar":
		return EstadoActivo, true
	default:
		return "", false
	}
}

// Etiquetas y colores de presentación por estado de programa.
var programaEstadoLabels = map[string]string{
	EstadoBorrador:     "Borrador",
	EstadoActivo:       "Activo",
	EstadoInhabilitado: "Inhabilitado",
}

var programaEstadoColors = map[string]string{
	EstadoBorrador:     "gray",
	EstadoActivo:       "green",
	EstadoInhabilitado: "red",
}

func ProgramaEstadoLabel(estado string) string {
	if label, ok := programaEstadoLabels[estado]; ok {
		return label
	}
	return estado
}

func ProgramaEstadoColor(estado string) string {
	if color, ok := programaEstadoColors[estado]; ok {
		return color
	}
	return "gray"
}

// UsuarioActions devuelve las acciones de fila de un usuario: alternar
// su estado y eliminarlo. Eliminar se ofrece siempre.
func UsuarioActions(estado string) []Action {
	toggle := Action{Name: "desactivar", Label: "Desactivar", Enabled: true}
	if estado == UsuarioInactivo {
		toggle = Action{Name: "activar", Label: "Activar", Enabled: true}
	}
	return []Action{
		toggle,
		{Name: "eliminar", Label: "Eliminar", Enabled: true},
	}
}

// UsuarioEstadoDestino devuelve el estado complementario al actual,
// para la acción de alternar.
func UsuarioEstadoDestino(estado string) string {
	if estado == UsuarioActivo {
		return UsuarioInactivo
	}
	return UsuarioActivo
}

var usuarioEstadoLabels = map[string]string{
	UsuarioActivo:   "Activo",
	UsuarioInactivo: "Inactivo",
}

var usuarioEstadoColors = map[string]string{
	UsuarioActivo:   "green",
	UsuarioInactivo: "gray",
}

func UsuarioEstadoLabel(estado string) string {
	if label, ok := usuarioEstadoLabels[estado]; ok {
		return label
	}
	return estado
}

func UsuarioEstadoColor(estado string) string {
	if color, ok := usuarioEstadoColors[estado]; ok {
		return color
	}
	return "gray"
}
