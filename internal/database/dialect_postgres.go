package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresDialect implements Dialect for PostgreSQL databases.
type PostgresDialect struct{}

// DriverName returns "postgres" for the lib/pq driver.
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// Placeholder returns "$N" for the given position.
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// SupportsLastInsertID returns false because PostgreSQL requires RETURNING clause.
func (d *PostgresDialect) SupportsLastInsertID() bool {
	return false
}

// ReturningClause returns "RETURNING <column>" for INSERT statements.
func (d *PostgresDialect) ReturningClause(column string) string {
	return fmt.Sprintf(" RETURNING %s", column)
}

// InitStatements returns nothing; session settings travel in the DSN so
// every pooled connection gets them.
func (d *PostgresDialect) InitStatements() []string {
	return nil
}

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

// IsDuplicateKeyError returns true if the error is a PostgreSQL unique violation.
func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func (d *PostgresDialect) AutoIncrementPrimaryKey() string {
	return "BIGSERIAL PRIMARY KEY"
}
