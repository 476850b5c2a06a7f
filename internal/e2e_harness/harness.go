package e2e_harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16"
	objectImage   = "rustfs/rustfs:latest"
	startTimeout  = 30 * time.Second
)

// Environment is a Postgres database holding option rows plus an S3
// compatible bucket store holding schema documents.
type Environment struct {
	PostgresDSN string
	DB          *sql.DB
	S3Endpoint  string

	containers []testcontainers.Container
}

// StartEnvironment brings up both containers. On error everything already
// started is terminated.
func StartEnvironment(ctx context.Context) (*Environment, error) {
	env := &Environment{}

	if err := env.startPostgres(ctx); err != nil {
		env.Close(ctx)
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	if err := env.startObjectStore(ctx); err != nil {
		env.Close(ctx)
		return nil, fmt.Errorf("start object store: %w", err)
	}
	return env, nil
}

// Close closes the database handle and terminates the containers.
func (e *Environment) Close(ctx context.Context) error {
	var errs []error
	if e.DB != nil {
		errs = append(errs, e.DB.Close())
		e.DB = nil
	}
	for i := len(e.containers) - 1; i >= 0; i-- {
		errs = append(errs, e.containers[i].Terminate(ctx))
	}
	e.containers = nil
	return errors.Join(errs...)
}

func (e *Environment) startPostgres(ctx context.Context) error {
	hostPort, err := e.run(ctx, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "formgen",
			"POSTGRES_PASSWORD": "formgen",
			"POSTGRES_DB":       "library",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(startTimeout),
	}, "5432")
	if err != nil {
		return err
	}

	e.PostgresDSN = fmt.Sprintf("postgres://formgen:formgen@%s/library?sslmode=disable", hostPort)
	db, err := sql.Open("postgres", e.PostgresDSN)
	if err != nil {
		return err
	}
	e.DB = db

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.PingContext(pingCtx)
}

func (e *Environment) startObjectStore(ctx context.Context) error {
	hostPort, err := e.run(ctx, testcontainers.ContainerRequest{
		Image:        objectImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": S3AccessKey,
			"RUSTFS_SECRET_KEY": S3SecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(startTimeout),
	}, "9000")
	if err != nil {
		return err
	}
	e.S3Endpoint = "http://" + hostPort
	return nil
}

// run starts a container, records it for Close and returns host:port for
// the given container port.
func (e *Environment) run(ctx context.Context, req testcontainers.ContainerRequest, port string) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	e.containers = append(e.containers, container)

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}
