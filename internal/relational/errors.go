package relational

import (
	"context"
	"errors"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errNoRow     = errors.New("row not found")
	errDuplicate = errors.New("duplicate key")
)

// classify maps driver errors onto domain kinds.
func classify(op, id string, err error) error {
	if err == nil {
		return nil
	}

	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || repository.IsConnectionError(err) {
		return domain.Unavailable(domain.BackendRelational, op, err)
	}

	switch repository.MapError(err, errNoRow, errDuplicate) {
	case errNoRow:
		return domain.NotFound(domain.BackendRelational, op, id)
	case errDuplicate:
		return domain.NewError(domain.KindConflict, domain.BackendRelational, op, err).With("id", id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return domain.NewError(domain.KindValidation, domain.BackendRelational, op, err).With("id", id)
		}
	}
	return domain.NewError(domain.KindInternal, domain.BackendRelational, op, err)
}

func validUUID(op, field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return domain.Invalid(domain.BackendRelational, op, "%s %q is not a valid UUID", field, value)
	}
	return nil
}

func validOptionalUUID(op, field, value string) error {
	if value == "" {
		return nil
	}
	return validUUID(op, field, value)
}
