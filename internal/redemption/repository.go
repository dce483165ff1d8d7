package redemption

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts redemption order persistence.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Order, int, error)
	ListInvoiceable(ctx context.Context, channel Channel, from, to time.Time) ([]Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	Create(ctx context.Context, order Order) (Order, error)
	CreateBatch(ctx context.Context, orders []Order) ([]Order, error)
	Update(ctx context.Context, id int64, order Order) error
	SetStatus(ctx context.Context, id int64, change StatusChange, poNumber string) error
	SoftDelete(ctx context.Context, id int64) error
	History(ctx context.Context, orderID int64) ([]StatusChange, error)
	AddComment(ctx context.Context, comment Comment) (Comment, error)
	Comments(ctx context.Context, orderID int64) ([]Comment, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const orderColumns = `id, channel, order_number, customer_name, COALESCE(cnic, ''), COALESCE(phone, ''),
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(pincode, ''),
	COALESCE(mobile2, ''), COALESCE(brand, ''), COALESCE(ref_no, ''), COALESCE(redeemed_points, 0),
	COALESCE(eforms, ''), COALESCE(authorized_receiver, ''), COALESCE(receiver_cnic, ''),
	COALESCE(amount, 0), COALESCE(color, ''),
	product_id, product_name, COALESCE(gift_code, ''),
	quantity, status, COALESCE(po_number, ''), order_date, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Channel, &o.OrderNumber, &o.CustomerName, &o.CNIC, &o.Phone,
		&o.Address, &o.City, &o.Pincode,
		&o.Mobile2, &o.Brand, &o.RefNo, &o.RedeemedPoints,
		&o.Eforms, &o.AuthorizedReceiver, &o.ReceiverCNIC,
		&o.Amount, &o.Color,
		&o.ProductID, &o.ProductName, &o.GiftCode,
		&o.Quantity, &o.Status, &o.PONumber, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const insertOrderSQL = `INSERT INTO redemption_orders
	(channel, order_number, customer_name, cnic, phone, address, city, pincode,
	 mobile2, brand, ref_no, redeemed_points,
	 eforms, authorized_receiver, receiver_cnic, amount, color,
	 product_id, product_name, gift_code, quantity, status, order_date)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
	NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, 0),
	NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, 0), NULLIF($17, ''),
	$18, $19, NULLIF($20, ''), $21, $22, $23)`

func orderInsertArgs(o Order) []any {
	return []any{
		string(o.Channel), o.OrderNumber, o.CustomerName, o.CNIC, o.Phone, o.Address, o.City, o.Pincode,
		o.Mobile2, o.Brand, o.RefNo, o.RedeemedPoints,
		o.Eforms, o.AuthorizedReceiver, o.ReceiverCNIC, o.Amount, o.Color,
		o.ProductID, o.ProductName, o.GiftCode, o.Quantity, string(o.Status), o.OrderDate,
	}
}

func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "order_number":
		return "order_number " + dir + ", id DESC"
	case "customer_name":
		return "customer_name " + dir + ", id DESC"
	case "status":
		return "status " + dir + ", id DESC"
	case "created_at":
		return "created_at " + dir + ", id DESC"
	default:
		return "order_date " + dir + ", id DESC"
	}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	where := ` WHERE deleted_at IS NULL`
	args := []any{}
	argCount := 0

	if filters.Channel != "" {
		argCount++
		where += ` AND channel = $` + strconv.Itoa(argCount)
		args = append(args, string(filters.Channel))
	}
	if filters.Status != "" {
		argCount++
		where += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, string(filters.Status))
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (order_number ILIKE $` + strconv.Itoa(argCount) + ` OR customer_name ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if !filters.From.IsZero() {
		argCount++
		where += ` AND order_date >= $` + strconv.Itoa(argCount)
		args = append(args, filters.From)
	}
	if !filters.To.IsZero() {
		argCount++
		where += ` AND order_date <= $` + strconv.Itoa(argCount)
		args = append(args, filters.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM redemption_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM redemption_orders` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// ListInvoiceable returns the channel's fulfilled orders inside the window,
// oldest first, for consolidated invoice generation.
func (r *repository) ListInvoiceable(ctx context.Context, channel Channel, from, to time.Time) ([]Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM redemption_orders
	WHERE deleted_at IS NULL AND channel = $1
		AND status IN ('purchased', 'dispatched', 'delivered')
		AND order_date >= $2 AND order_date <= $3
	ORDER BY order_date ASC, id ASC`, string(channel), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM redemption_orders WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *repository) Create(ctx context.Context, order Order) (Order, error) {
	err := r.db.QueryRow(ctx, insertOrderSQL+` RETURNING id, created_at, updated_at`,
		orderInsertArgs(order)...).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// CreateBatch inserts pre-parsed rows from a channel feed in one transaction.
func (r *repository) CreateBatch(ctx context.Context, orders []Order) ([]Order, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := range orders {
		err := tx.QueryRow(ctx, insertOrderSQL+`
		ON CONFLICT (channel, order_number) DO NOTHING
		RETURNING id, created_at, updated_at`,
			orderInsertArgs(orders[i])...).
			Scan(&orders[i].ID, &orders[i].CreatedAt, &orders[i].UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			// Duplicate feed row, skip silently.
			orders[i].ID = 0
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	inserted := orders[:0]
	for _, o := range orders {
		if o.ID != 0 {
			inserted = append(inserted, o)
		}
	}
	return inserted, nil
}

func (r *repository) Update(ctx context.Context, id int64, order Order) error {
	tag, err := r.db.Exec(ctx, `UPDATE redemption_orders
	SET customer_name = $1, phone = NULLIF($2, ''), address = NULLIF($3, ''),
		city = NULLIF($4, ''), pincode = NULLIF($5, ''), quantity = $6, updated_at = NOW()
	WHERE id = $7 AND deleted_at IS NULL`,
		order.CustomerName, order.Phone, order.Address, order.City, order.Pincode, order.Quantity, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus updates the order status and appends the history entry atomically.
func (r *repository) SetStatus(ctx context.Context, id int64, change StatusChange, poNumber string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE redemption_orders
	SET status = $1, po_number = COALESCE(NULLIF($2, ''), po_number), updated_at = NOW()
	WHERE id = $3 AND deleted_at IS NULL`, string(change.To), poNumber, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = tx.Exec(ctx, `INSERT INTO redemption_status_history (order_id, from_status, to_status, note, actor_id)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, 0))`,
		id, string(change.From), string(change.To), change.Note, change.ActorID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE redemption_orders
	SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) History(ctx context.Context, orderID int64) ([]StatusChange, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_id, from_status, to_status, COALESCE(note, ''),
		COALESCE(actor_id, 0), created_at
	FROM redemption_status_history WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.From, &c.To, &c.Note, &c.ActorID, &c.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

func (r *repository) AddComment(ctx context.Context, comment Comment) (Comment, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO redemption_comments (order_id, actor_id, body)
	VALUES ($1, NULLIF($2, 0), $3) RETURNING id, created_at`,
		comment.OrderID, comment.ActorID, comment.Body).
		Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (r *repository) Comments(ctx context.Context, orderID int64) ([]Comment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_id, COALESCE(actor_id, 0), body, created_at
	FROM redemption_comments WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.OrderID, &c.ActorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
