package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"cardshop/internal/domain"

	"github.com/lib/pq"
)

// PostgreSQL error codes the catalog translates
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// mapError converts driver errors into domain errors, keeping the original in the chain
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case uniqueViolation:
			return fmt.Errorf("%s: %w (%s)", what, domain.ErrConflict, pqErr.Constraint)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", what, domain.ErrNotFound, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
