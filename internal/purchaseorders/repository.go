package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const poColumns = `id, number, vendor_id, COALESCE(bank_order_id, 0), COALESCE(bip_order_id, 0),
	total_amount, status, COALESCE(notes, ''), COALESCE(cancellation_reason, ''),
	original_po_ids, COALESCE(merged_po_id, 0), created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var (
		po    PurchaseOrder
		total pgtype.Numeric
	)
	err := row.Scan(&po.ID, &po.Number, &po.VendorID, &po.BankOrderID, &po.BIPOrderID,
		&total, &po.Status, &po.Notes, &po.CancellationReason,
		&po.OriginalPOIDs, &po.MergedPOID, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if total.Valid {
		f, _ := total.Float64Value()
		po.TotalAmount = f.Float64
	}
	return po, nil
}

func getPO(ctx context.Context, q querier, id int64) (PurchaseOrder, error) {
	po, err := scanPO(q.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	lines, err := getLines(ctx, q, []int64{id})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines[id]
	return po, nil
}

func getLines(ctx context.Context, q querier, poIDs []int64) (map[int64][]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT po_id, product_id, COALESCE(product_name, ''), COALESCE(bank_product_number, ''),
		quantity, unit_price, COALESCE(serial_number, '')
	FROM purchase_order_lines WHERE po_id = ANY($1) ORDER BY id`, poIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]LineItem, len(poIDs))
	for rows.Next() {
		var (
			poID  int64
			line  LineItem
			price pgtype.Numeric
		)
		if err := rows.Scan(&poID, &line.ProductID, &line.ProductName, &line.BankProductNumber,
			&line.Quantity, &price, &line.SerialNumber); err != nil {
			return nil, err
		}
		if price.Valid {
			f, _ := price.Float64Value()
			line.UnitPrice = f.Float64
		}
		result[poID] = append(result[poID], line)
	}
	return result, rows.Err()
}

// GetPO returns a purchase order with its lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getPO(ctx, r.pool, id)
}

// GetPOs resolves many purchase orders at once, keyed by ID. Missing IDs are
// simply absent from the map.
func (r *Repository) GetPOs(ctx context.Context, ids []int64) (map[int64]PurchaseOrder, error) {
	return getPOs(ctx, r.pool, ids, false)
}

func getPOs(ctx context.Context, q querier, ids []int64, forUpdate bool) (map[int64]PurchaseOrder, error) {
	if len(ids) == 0 {
		return map[int64]PurchaseOrder{}, nil
	}
	sql := `SELECT ` + poColumns + ` FROM purchase_orders WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY id`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]PurchaseOrder, len(ids))
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		result[po.ID] = po
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := make([]int64, 0, len(result))
	for id := range result {
		found = append(found, id)
	}
	lines, err := getLines(ctx, q, found)
	if err != nil {
		return nil, err
	}
	for id, po := range result {
		po.Lines = lines[id]
		result[id] = po
	}
	return result, nil
}

// List returns a filtered page of purchase orders plus the total count.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	where, args := buildFilters(filters)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + poColumns + ` FROM purchase_orders p` + where +
		` ORDER BY ` + sortOrderPO(filters.SortBy, filters.SortDir) +
		` LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var pos []PurchaseOrder
	ids := []int64{}
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		pos = append(pos, po)
		ids = append(ids, po.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	lines, err := getLines(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range pos {
		pos[i].Lines = lines[pos[i].ID]
	}
	return pos, total, nil
}

func buildFilters(filters ListFilters) (string, []any) {
	where := ` WHERE p.deleted_at IS NULL`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		where += ` AND p.status = $` + itoa(argNum)
		args = append(args, string(filters.Status))
		argNum++
	}
	if filters.VendorID > 0 {
		where += ` AND p.vendor_id = $` + itoa(argNum)
		args = append(args, filters.VendorID)
		argNum++
	}
	if filters.Search != "" {
		where += ` AND p.number ILIKE $` + itoa(argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}
	if !filters.From.IsZero() {
		where += ` AND p.created_at >= $` + itoa(argNum)
		args = append(args, filters.From)
		argNum++
	}
	if !filters.To.IsZero() {
		where += ` AND p.created_at <= $` + itoa(argNum)
		args = append(args, filters.To)
		argNum++
	}
	return where, args
}

// ListCombinable returns a vendor's mergeable purchase orders in the window,
// oldest first so operators see candidates in intake order.
func (r *Repository) ListCombinable(ctx context.Context, vendorID int64, from, to time.Time) ([]PurchaseOrder, error) {
	sql := `SELECT ` + poColumns + ` FROM purchase_orders
	WHERE deleted_at IS NULL AND vendor_id = $1 AND status IN ('pending', 'approved')`
	args := []any{vendorID}
	argNum := 2
	if !from.IsZero() {
		sql += ` AND created_at >= $` + itoa(argNum)
		args = append(args, from)
		argNum++
	}
	if !to.IsZero() {
		sql += ` AND created_at <= $` + itoa(argNum)
		args = append(args, to)
		argNum++
	}
	sql += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pos []PurchaseOrder
	ids := []int64{}
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		pos = append(pos, po)
		ids = append(ids, po.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := getLines(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range pos {
		pos[i].Lines = lines[pos[i].ID]
	}
	return pos, nil
}

// itoa converts int to string for dynamic query building.
func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

// sortOrderPO returns a safe ORDER BY clause for PO queries.
func sortOrderPO(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "p.number " + dir
	case "vendor":
		return "p.vendor_id " + dir
	case "total":
		return "p.total_amount " + dir
	case "status":
		return "p.status " + dir
	default:
		return "p.created_at DESC"
	}
}

// Transactional operations

func (tx *txRepo) GetPOsForUpdate(ctx context.Context, ids []int64) (map[int64]PurchaseOrder, error) {
	return getPOs(ctx, tx.tx, ids, true)
}

func (tx *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var total pgtype.Numeric
	if err := total.Scan(fmt.Sprintf("%.2f", po.TotalAmount)); err != nil {
		return 0, err
	}
	originals := provenanceParam(po.OriginalPOIDs)
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders
		(number, vendor_id, bank_order_id, bip_order_id, total_amount, status, notes, original_po_ids)
	VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5, $6, $7, $8)
	RETURNING id`,
		po.Number, po.VendorID, po.BankOrderID, po.BIPOrderID, total, string(po.Status), po.Notes, originals).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range po.Lines {
		if err := insertLine(ctx, tx.tx, id, line); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// provenanceParam keeps the original_po_ids parameter non-nil: pgx encodes a
// nil slice as SQL NULL, which the NOT NULL column rejects.
func provenanceParam(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func insertLine(ctx context.Context, q querier, poID int64, line LineItem) error {
	var price pgtype.Numeric
	if err := price.Scan(fmt.Sprintf("%f", line.UnitPrice)); err != nil {
		return err
	}
	_, err := q.Exec(ctx, `INSERT INTO purchase_order_lines
		(po_id, product_id, product_name, bank_product_number, quantity, unit_price, serial_number)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		poID, line.ProductID, line.ProductName, line.BankProductNumber, line.Quantity, price, line.SerialNumber)
	return err
}

func (tx *txRepo) UpdateDetails(ctx context.Context, po PurchaseOrder) error {
	var total pgtype.Numeric
	if err := total.Scan(fmt.Sprintf("%.2f", po.TotalAmount)); err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
	SET notes = $1, total_amount = $2, updated_at = NOW()
	WHERE id = $3 AND deleted_at IS NULL`, po.Notes, total, po.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE po_id = $1`, po.ID); err != nil {
		return err
	}
	for _, line := range po.Lines {
		if err := insertLine(ctx, tx.tx, po.ID, line); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
	SET status = $1, cancellation_reason = NULLIF($2, ''), updated_at = NOW()
	WHERE id = $3 AND deleted_at IS NULL`, string(status), reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) MarkMerged(ctx context.Context, id, mergedPOID int64) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
	SET status = 'merged', merged_po_id = $1, updated_at = NOW()
	WHERE id = $2 AND deleted_at IS NULL AND status IN ('pending', 'approved')`, mergedPOID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) SetSerialNumbers(ctx context.Context, poID int64, serials map[int64]string) error {
	for productID, serial := range serials {
		tag, err := tx.tx.Exec(ctx, `UPDATE purchase_order_lines
		SET serial_number = $1 WHERE po_id = $2 AND product_id = $3`, serial, poID, productID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: product %d on PO %d", ErrNotFound, productID, poID)
		}
	}
	return nil
}

func (tx *txRepo) SoftDelete(ctx context.Context, id int64) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
	SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
