// Package pg wires the Postgres connection pool the license engine stores
// its licenses, webhook audit log and task queue in: pgxpool connect with
// startup retry, goose migrations, and a healthcheck helper.
package pg
