package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Stats is the headline dashboard payload.
type Stats struct {
	PurchaseOrders struct {
		Total     int     `json:"total"`
		Pending   int     `json:"pending"`
		Approved  int     `json:"approved"`
		Merged    int     `json:"merged"`
		Delivered int     `json:"delivered"`
		Cancelled int     `json:"cancelled"`
		OpenValue float64 `json:"openValue"`
	} `json:"purchaseOrders"`
	Orders struct {
		Bank    int `json:"bank"`
		BIP     int `json:"bip"`
		Pending int `json:"pending"`
	} `json:"orders"`
	Challans struct {
		Issued     int `json:"issued"`
		Dispatched int `json:"dispatched"`
	} `json:"challans"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// MonthlyTotal is one bucket of the purchase value trend.
type MonthlyTotal struct {
	Month string  `json:"month"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// VendorTotal ranks a vendor by open purchase value.
type VendorTotal struct {
	VendorID   int64   `json:"vendorId"`
	VendorName string  `json:"vendorName"`
	Count      int     `json:"count"`
	Total      float64 `json:"total"`
}

// AgingBucket counts pending redemption orders by how long they have waited.
type AgingBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// ComprehensiveStats extends Stats with trend and ranking data.
type ComprehensiveStats struct {
	Stats
	MonthlyPurchases []MonthlyTotal `json:"monthlyPurchases"`
	TopVendors       []VendorTotal  `json:"topVendors"`
	PendingAging     []AgingBucket  `json:"pendingAging"`
}

// Service computes dashboard statistics with read-through caching.
type Service struct {
	db    *pgxpool.Pool
	cache *Cache
	now   func() time.Time
}

// NewService constructs the service.
func NewService(db *pgxpool.Pool, cache *Cache) *Service {
	return &Service{db: db, cache: cache, now: time.Now}
}

// Stats returns the headline numbers, served from cache when fresh.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "stats")
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	err = s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (any, error) {
		return s.loadStats(ctx)
	})
	return stats, err
}

// ComprehensiveStats returns the extended payload.
func (s *Service) ComprehensiveStats(ctx context.Context) (ComprehensiveStats, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "comprehensive")
	if err != nil {
		return ComprehensiveStats{}, err
	}
	var stats ComprehensiveStats
	err = s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (any, error) {
		return s.loadComprehensive(ctx)
	})
	return stats, err
}

// Invalidate drops all cached stats.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// loadStats fans the independent count queries out concurrently.
func (s *Service) loadStats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.db.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM purchase_orders WHERE deleted_at IS NULL GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status string
				count  int
				total  float64
			)
			if err := rows.Scan(&status, &count, &total); err != nil {
				return err
			}
			stats.PurchaseOrders.Total += count
			switch status {
			case "pending":
				stats.PurchaseOrders.Pending = count
				stats.PurchaseOrders.OpenValue += total
			case "approved":
				stats.PurchaseOrders.Approved = count
				stats.PurchaseOrders.OpenValue += total
			case "merged":
				stats.PurchaseOrders.Merged = count
			case "delivered":
				stats.PurchaseOrders.Delivered = count
			case "cancelled":
				stats.PurchaseOrders.Cancelled = count
			}
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.Query(ctx, `SELECT channel, status, COUNT(*)
		FROM redemption_orders GROUP BY channel, status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				channel, status string
				count           int
			)
			if err := rows.Scan(&channel, &status, &count); err != nil {
				return err
			}
			switch channel {
			case "bank":
				stats.Orders.Bank += count
			case "bip":
				stats.Orders.BIP += count
			}
			if status == "pending" {
				stats.Orders.Pending += count
			}
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM delivery_challans GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status string
				count  int
			)
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			switch status {
			case "issued":
				stats.Challans.Issued = count
			case "dispatched":
				stats.Challans.Dispatched = count
			}
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	stats.GeneratedAt = s.now()
	return stats, nil
}

func (s *Service) loadComprehensive(ctx context.Context) (ComprehensiveStats, error) {
	var stats ComprehensiveStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		base, err := s.loadStats(gctx)
		if err != nil {
			return err
		}
		stats.Stats = base
		return nil
	})

	g.Go(func() error {
		rows, err := s.db.Query(gctx, `SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
			COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM purchase_orders
		WHERE deleted_at IS NULL AND status NOT IN ('cancelled', 'merged')
			AND created_at >= date_trunc('month', NOW()) - INTERVAL '11 months'
		GROUP BY month ORDER BY month`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m MonthlyTotal
			if err := rows.Scan(&m.Month, &m.Count, &m.Total); err != nil {
				return err
			}
			stats.MonthlyPurchases = append(stats.MonthlyPurchases, m)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.Query(gctx, `SELECT p.vendor_id, COALESCE(v.name, ''), COUNT(*), COALESCE(SUM(p.total_amount), 0) AS total
		FROM purchase_orders p
		LEFT JOIN vendors v ON v.id = p.vendor_id
		WHERE p.deleted_at IS NULL AND p.status IN ('pending', 'approved')
		GROUP BY p.vendor_id, v.name ORDER BY total DESC LIMIT 10`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v VendorTotal
			if err := rows.Scan(&v.VendorID, &v.VendorName, &v.Count, &v.Total); err != nil {
				return err
			}
			stats.TopVendors = append(stats.TopVendors, v)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.Query(gctx, `SELECT CASE
				WHEN NOW() - created_at < INTERVAL '3 days' THEN '0-3d'
				WHEN NOW() - created_at < INTERVAL '7 days' THEN '3-7d'
				WHEN NOW() - created_at < INTERVAL '14 days' THEN '7-14d'
				ELSE '14d+'
			END AS bucket, COUNT(*)
		FROM redemption_orders WHERE status = 'pending'
		GROUP BY bucket ORDER BY MIN(NOW() - created_at)`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b AgingBucket
			if err := rows.Scan(&b.Bucket, &b.Count); err != nil {
				return err
			}
			stats.PendingAging = append(stats.PendingAging, b)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return ComprehensiveStats{}, err
	}
	return stats, nil
}
