package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestionvivienda/subsidios/internal/db"
	"github.com/gestionvivienda/subsidios/internal/usuario"
)

// admin administra usuarios del sistema desde la terminal.
// Útil para crear el primer ADMINISTRADOR antes de tener panel.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN o DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("no fue posible conectar a la base")
	}
	defer pool.Close()

	repo := usuario.NewRepository(pool)
	service := usuario.NewService(repo)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		if err := runCreate(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("fallo al crear usuario")
		}
	case "list":
		if err := runList(ctx, service); err != nil {
			log.Fatal().Err(err).Msg("fallo al listar usuarios")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <create|list> [flags]")
	fmt.Fprintln(os.Stderr, "  create -nombre N -apellidos A -documento D -correo C -contrasena P [-rol ADMINISTRADOR]")
	fmt.Fprintln(os.Stderr, "  list")
}

func runCreate(ctx context.Context, service *usuario.Service, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	nombre := fs.String("nombre", "", "nombre")
	apellidos := fs.String("apellidos", "", "apellidos")
	documento := fs.String("documento", "", "número de documento")
	correo := fs.String("correo", "", "correo")
	contrasena := fs.String("contrasena", "", "contraseña")
	rol := fs.String("rol", usuario.RolAdministrador, "rol (ADMINISTRADOR, FUNCIONARIO, TECNICO)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// El API permite usuarios sin contraseña; por consola no tiene sentido.
	if strings.TrimSpace(*contrasena) == "" {
		return errors.New("la contraseña es obligatoria")
	}

	created, err := service.Create(ctx, usuario.CreateInput{
		Nombre:          *nombre,
		Apellidos:       *apellidos,
		NumeroDocumento: *documento,
		Correo:          *correo,
		Rol:             strings.ToUpper(strings.TrimSpace(*rol)),
		Contrasena:      *contrasena,
	})
	if err != nil {
		return err
	}

	log.Info().Str("id", created.ID.String()).Str("correo", created.Correo).Str("rol", created.Rol).Msg("usuario creado")
	return nil
}

func runList(ctx context.Context, service *usuario.Service) error {
	usuarios, err := service.List(ctx, usuario.ListFilter{})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(usuarios)
}
