package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	coreshared "github.com/odyssey-erp/backoffice/internal/shared"
)

var (
	ErrInvalidID = coreshared.Validationf("invalid ID")
	ErrDuplicate = coreshared.Conflictf("a record with this code already exists")
)

// MapWriteError translates unique violations into ErrDuplicate.
func MapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
