package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderdesk/internal/domain/address"
)

const (
	addressColumns = `id, user_id, full_name, phone, address_line1, address_line2,
		city, region, postal_code, country, type, is_default, created_at, updated_at`

	createAddressSQL = `INSERT INTO addresses (user_id, full_name, phone, address_line1, address_line2,
		city, region, postal_code, country, type, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`

	updateAddressSQL = `UPDATE addresses SET full_name = $2, phone = $3, address_line1 = $4,
		address_line2 = $5, city = $6, region = $7, postal_code = $8, country = $9,
		type = $10, is_default = $11, updated_at = $12
		WHERE id = $1 RETURNING user_id, created_at`

	clearDefaultSQL = `UPDATE addresses SET is_default = FALSE
		WHERE user_id = $1 AND id <> $2 AND is_default`

	getAddressSQL    = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY created_at, id`
	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Create inserts a and assigns its id. A default address demotes the
// owner's previous default in the same transaction.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, createAddressSQL,
			a.UserID, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2,
			a.City, a.Region, a.PostalCode, a.Country, a.Type, a.IsDefault,
			a.CreatedAt, a.UpdatedAt,
		).Scan(&a.ID); err != nil {
			return errors.Wrap(err, "create address")
		}
		return demote(ctx, tx, a)
	})
}

// Update replaces the editable columns of a. The owner and creation time
// are read back from the row.
func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, updateAddressSQL,
			a.ID, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2,
			a.City, a.Region, a.PostalCode, a.Country, a.Type, a.IsDefault,
			a.UpdatedAt,
		).Scan(&a.UserID, &a.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return address.ErrNotFound
			}
			return errors.Wrapf(err, "update address %d", a.ID)
		}
		return demote(ctx, tx, a)
	})
}

func demote(ctx context.Context, tx pgx.Tx, a *address.Address) error {
	if !a.IsDefault {
		return nil
	}
	if _, err := tx.Exec(ctx, clearDefaultSQL, a.UserID, a.ID); err != nil {
		return errors.Wrap(err, "clear default address")
	}
	return nil
}

// GetByID returns the address with the given id.
func (r *AddressRepository) GetByID(ctx context.Context, id int64) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id)
	if err != nil {
		return nil, errors.Wrap(err, "get address")
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrap(err, "get address")
	}
	return &a, nil
}

// ListByUser returns the addresses of userID, oldest first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID int64) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	list, err := pgx.CollectRows(rows, scanAddress)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	if list == nil {
		list = []address.Address{}
	}
	return list, nil
}

// Delete removes the address with the given id.
func (r *AddressRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteAddressSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete address %d", id)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.AddressLine1, &a.AddressLine2,
		&a.City, &a.Region, &a.PostalCode, &a.Country, &a.Type, &a.IsDefault,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}
