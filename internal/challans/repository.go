package challans

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts challan persistence. Items are stored as a JSONB
// column since they are always read and written with their challan.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Challan, int, error)
	Get(ctx context.Context, id int64) (Challan, error)
	GetMany(ctx context.Context, ids []int64) ([]Challan, error)
	Create(ctx context.Context, challan Challan) (Challan, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	SetPDFPath(ctx context.Context, id int64, path string) error
	CreateShipment(ctx context.Context, shipment Shipment) (Shipment, error)
	ShipmentForChallan(ctx context.Context, challanID int64) (Shipment, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const challanColumns = `id, number, order_id, recipient_name, address, COALESCE(city, ''),
	COALESCE(pincode, ''), COALESCE(phone, ''), items, status, COALESCE(pdf_path, ''), created_at, updated_at`

func scanChallan(row pgx.Row) (Challan, error) {
	var (
		c     Challan
		items []byte
	)
	err := row.Scan(&c.ID, &c.Number, &c.OrderID, &c.RecipientName, &c.Address, &c.City,
		&c.Pincode, &c.Phone, &items, &c.Status, &c.PDFPath, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Challan{}, err
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return Challan{}, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Challan, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Status != "" {
		argCount++
		where += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, string(filters.Status))
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (number ILIKE $` + strconv.Itoa(argCount) + ` OR recipient_name ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if !filters.From.IsZero() {
		argCount++
		where += ` AND created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filters.From)
	}
	if !filters.To.IsZero() {
		argCount++
		where += ` AND created_at <= $` + strconv.Itoa(argCount)
		args = append(args, filters.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_challans`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + challanColumns + ` FROM delivery_challans` + where + ` ORDER BY created_at DESC, id DESC`
	if filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var challans []Challan
	for rows.Next() {
		c, err := scanChallan(rows)
		if err != nil {
			return nil, 0, err
		}
		challans = append(challans, c)
	}
	return challans, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Challan, error) {
	c, err := scanChallan(r.db.QueryRow(ctx, `SELECT `+challanColumns+` FROM delivery_challans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challan{}, ErrNotFound
		}
		return Challan{}, err
	}
	return c, nil
}

func (r *repository) GetMany(ctx context.Context, ids []int64) ([]Challan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+challanColumns+` FROM delivery_challans WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challans []Challan
	for rows.Next() {
		c, err := scanChallan(rows)
		if err != nil {
			return nil, err
		}
		challans = append(challans, c)
	}
	return challans, rows.Err()
}

func (r *repository) Create(ctx context.Context, challan Challan) (Challan, error) {
	items, err := json.Marshal(challan.Items)
	if err != nil {
		return Challan{}, err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO delivery_challans
		(number, order_id, recipient_name, address, city, pincode, phone, items, status)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
	RETURNING id, created_at, updated_at`,
		challan.Number, challan.OrderID, challan.RecipientName, challan.Address,
		challan.City, challan.Pincode, challan.Phone, items, string(challan.Status)).
		Scan(&challan.ID, &challan.CreatedAt, &challan.UpdatedAt)
	if err != nil {
		return Challan{}, err
	}
	return challan, nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE delivery_challans SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetPDFPath(ctx context.Context, id int64, path string) error {
	tag, err := r.db.Exec(ctx, `UPDATE delivery_challans SET pdf_path = $1, updated_at = NOW() WHERE id = $2`, path, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CreateShipment(ctx context.Context, shipment Shipment) (Shipment, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO shipments (challan_id, courier, tracking_number, booked_at)
	VALUES ($1, $2, $3, $4) RETURNING id`,
		shipment.ChallanID, shipment.Courier, shipment.TrackingNumber, shipment.BookedAt).
		Scan(&shipment.ID)
	if err != nil {
		return Shipment{}, err
	}
	return shipment, nil
}

func (r *repository) ShipmentForChallan(ctx context.Context, challanID int64) (Shipment, error) {
	var s Shipment
	err := r.db.QueryRow(ctx, `SELECT id, challan_id, courier, tracking_number, booked_at, COALESCE(delivered_at, 'epoch'::timestamptz)
	FROM shipments WHERE challan_id = $1 ORDER BY id DESC LIMIT 1`, challanID).
		Scan(&s.ID, &s.ChallanID, &s.Courier, &s.TrackingNumber, &s.BookedAt, &s.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, err
	}
	return s, nil
}
