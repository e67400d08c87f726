package sdk

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Prefijos de las claves de lectura. La tabla de invalidación opera
// sobre estos prefijos, nunca sobre claves sueltas.
const (
	keyProgramasList   = "programas:list"
	keyProgramasDetail = "programas:detail"
	keyProgramasStats  = "programas:stats"
	keyUsuariosList    = "usuarios:list"
	keyUsuariosDetail  = "usuarios:detail"
	keyUsuariosStats   = "usuarios:stats"
)

// Ventanas de frescura por tipo de clave.
var (
	listOptions   = QueryOptions{StaleTime: 30 * time.Second, Retention: 5 * time.Minute}
	detailOptions = QueryOptions{StaleTime: 5 * time.Minute, Retention: 10 * time.Minute}
	statsOptions  = QueryOptions{StaleTime: 10 * time.Minute, Retention: 15 * time.Minute}

	// Las cifras de usuarios alimentan tarjetas del panel que deben
	// reflejar cada alta y baja al instante: ni frescura ni retención.
	usuarioStatsOptions = QueryOptions{StaleTime: 0, Retention: 0}
)

// Tabla de invalidación: cada mutación declara qué prefijos ensucia.
// El despachador (applyMutation) la aplica siempre tras el write-through.
var mutationRules = map[string]mutationEffect{
	"programa.crear": {
		invalidate: []string{keyProgramasList, keyProgramasStats},
	},
	"programa.actualizar": {
		invalidate: []string{keyProgramasList},
	},
	"programa.cambiar_estado": {
		invalidate: []string{keyProgramasList, keyProgramasStats},
	},
	"programa.eliminar": {
		dropDetail: true,
		invalidate: []string{keyProgramasList, keyProgramasStats},
	},
	"usuario.crear": {
		invalidate: []string{keyUsuariosList, keyUsuariosStats},
	},
	"usuario.actualizar": {
		invalidate: []string{keyUsuariosList},
	},
	"usuario.cambiar_estado": {
		invalidate: []string{keyUsuariosList, keyUsuariosStats},
	},
	"usuario.eliminar": {
		dropDetail: true,
		invalidate: []string{keyUsuariosList, keyUsuariosStats},
	},
}

// Cache envuelve el cliente con la cache de lecturas y el despachador
// de mutaciones. Es la puerta de entrada recomendada para un panel.
type Cache struct {
	store     *Store
	programas *ProgramasAPI
	usuarios  *UsuariosAPI
}

func NewCache(client *Client) *Cache {
	return &Cache{
		store:     NewStore(),
		programas: NewProgramasAPI(client),
		usuarios:  NewUsuariosAPI(client),
	}
}

// Store expone la cache subyacente, útil para invalidaciones manuales.
func (c *Cache) Store() *Store { return c.store }

func programaListKey(estado string, page int) string {
	return fmt.Sprintf("%s:estado=%s:page=%d", keyProgramasList, estado, page)
}

func programaDetailKey(id string) string {
	return keyProgramasDetail + ":" + id
}

func usuarioListKey(filtro UsuarioFiltro) string {
	return fmt.Sprintf("%s:rol=%s:estado=%s:buscar=%s", keyUsuariosList, filtro.Rol, filtro.Estado, filtro.Buscar)
}

func usuarioDetailKey(id string) string {
	return keyUsuariosDetail + ":" + id
}

func (c *Cache) mutate(kind, detailID string, value any) {
	effect, ok := mutationRules[kind]
	if !ok {
		return
	}
	if detailID != "" {
		if strings.HasPrefix(kind, "programa.") {
			effect.detailKey = programaDetailKey(detailID)
		} else {
			effect.detailKey = usuarioDetailKey(detailID)
		}
	}
	c.store.applyMutation(effect, value)
}

// ListProgramas devuelve la página pedida, de cache cuando está fresca.
func (c *Cache) ListProgramas(ctx context.Context, estado string, page int) (*ProgramaPage, error) {
	if page < 1 {
		page = 1
	}
	value, err := c.store.Query(ctx, programaListKey(estado, page), listOptions, func(ctx context.Context) (any, error) {
		return c.programas.List(ctx, estado, page)
	})
	if err != nil {
		return nil, err
	}
	return value.(*ProgramaPage), nil
}

func (c *Cache) GetPrograma(ctx context.Context, id string) (*Programa, error) {
	value, err := c.store.Query(ctx, programaDetailKey(id), detailOptions, func(ctx context.Context) (any, error) {
		return c.programas.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Programa), nil
}

func (c *Cache) EstadisticasProgramas(ctx context.Context) (*ProgramaEstadisticas, error) {
	value, err := c.store.Query(ctx, keyProgramasStats, statsOptions, func(ctx context.Context) (any, error) {
		return c.programas.Estadisticas(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(*ProgramaEstadisticas), nil
}

func (c *Cache) CrearPrograma(ctx context.Context, input ProgramaInput) (*Programa, error) {
	p, err := c.programas.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	c.store.Set(programaDetailKey(p.ID), p)
	c.mutate("programa.crear", "", nil)
	return p, nil
}

func (c *Cache) ActualizarPrograma(ctx context.Context, id string, input ProgramaInput) (*Programa, error) {
	p, err := c.programas.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	c.mutate("programa.actualizar", id, p)
	return p, nil
}

func (c *Cache) CambiarEstadoPrograma(ctx context.Context, id, nuevoEstado string) (*CambioEstadoResult, error) {
	res, err := c.programas.CambiarEstado(ctx, id, nuevoEstado)
	if err != nil {
		return nil, err
	}
	c.mutate("programa.cambiar_estado", id, &res.Programa)
	return res, nil
}

func (c *Cache) EliminarPrograma(ctx context.Context, id string) error {
	if err := c.programas.Delete(ctx, id); err != nil {
		return err
	}
	c.mutate("programa.eliminar", id, nil)
	return nil
}

// ListUsuarios devuelve los usuarios que pasan el filtro, de cache
// cuando está fresca.
func (c *Cache) ListUsuarios(ctx context.Context, filtro UsuarioFiltro) ([]Usuario, error) {
	value, err := c.store.Query(ctx, usuarioListKey(filtro), listOptions, func(ctx context.Context) (any, error) {
		return c.usuarios.List(ctx, filtro)
	})
	if err != nil {
		return nil, err
	}
	return value.([]Usuario), nil
}

func (c *Cache) GetUsuario(ctx context.Context, id string) (*Usuario, error) {
	value, err := c.store.Query(ctx, usuarioDetailKey(id), detailOptions, func(ctx context.Context) (any, error) {
		return c.usuarios.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Usuario), nil
}

func (c *Cache) EstadisticasUsuarios(ctx context.Context) (*UsuarioEstadisticas, error) {
	value, err := c.store.Query(ctx, keyUsuariosStats, usuarioStatsOptions, func(ctx context.Context) (any, error) {
		return c.usuarios.Estadisticas(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(*UsuarioEstadisticas), nil
}

func (c *Cache) CrearUsuario(ctx context.Context, input UsuarioInput) (*Usuario, error) {
	u, err := c.usuarios.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	c.store.Set(usuarioDetailKey(u.ID), u)
	c.mutate("usuario.crear", "", nil)
	return u, nil
}

func (c *Cache) ActualizarUsuario(ctx context.Context, id string, input UsuarioInput) (*Usuario, error) {
	u, err := c.usuarios.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	c.mutate("usuario.actualizar", id, u)
	return u, nil
}

func (c *Cache) CambiarEstadoUsuario(ctx context.Context, id, estado string) (*Usuario, error) {
	u, err := c.usuarios.CambiarEstado(ctx, id, estado)
	if err != nil {
		return nil, err
	}
	c.mutate("usuario.cambiar_estado", id, u)
	return u, nil
}

func (c *Cache) EliminarUsuario(ctx context.Context, id string) error {
	if err := c.usuarios.Delete(ctx, id); err != nil {
		return err
	}
	c.mutate("usuario.eliminar", id, nil)
	return nil
}
