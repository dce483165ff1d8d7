package vendors

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts vendor persistence.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const vendorColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(gst_number, ''), created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Vendor, int, error) {
	where := ` WHERE deleted_at IS NULL`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR gst_number ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.City != "" {
		argCount++
		where += ` AND city ILIKE $` + strconv.Itoa(argCount)
		args = append(args, filters.City)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + vendorColumns + ` FROM vendors` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.Address, &v.City, &v.GSTNumber, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, v)
	}
	return vendors, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.Address, &v.City, &v.GSTNumber, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, err
	}
	return v, nil
}

func (r *repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO vendors (name, email, phone, address, city, gst_number)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
	RETURNING id, created_at, updated_at`,
		vendor.Name, vendor.Email, vendor.Phone, vendor.Address, vendor.City, vendor.GSTNumber).
		Scan(&vendor.ID, &vendor.CreatedAt, &vendor.UpdatedAt)
	if err != nil {
		return Vendor{}, err
	}
	return vendor, nil
}

func (r *repository) Update(ctx context.Context, id int64, vendor Vendor) error {
	tag, err := r.db.Exec(ctx, `UPDATE vendors
	SET name = $1, email = NULLIF($2, ''), phone = NULLIF($3, ''), address = NULLIF($4, ''),
		city = NULLIF($5, ''), gst_number = NULLIF($6, ''), updated_at = NOW()
	WHERE id = $7 AND deleted_at IS NULL`,
		vendor.Name, vendor.Email, vendor.Phone, vendor.Address, vendor.City, vendor.GSTNumber, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE vendors SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "city":
		return "city " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name ASC"
	}
}
