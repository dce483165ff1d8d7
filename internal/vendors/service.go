package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
)

// Service exposes vendor directory operations.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a filtered page of vendors plus the total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Vendor, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	return s.repo.List(ctx, filters)
}

// Get fetches one vendor.
func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, fmt.Errorf("%w: invalid vendor ID", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new vendor.
func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	if vendor.Name == "" {
		return Vendor{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	return s.repo.Create(ctx, vendor)
}

// Update edits an existing vendor.
func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) error {
	if id <= 0 || vendor.Name == "" {
		return fmt.Errorf("%w: id and name required", ErrValidation)
	}
	return s.repo.Update(ctx, id, vendor)
}

// Delete soft-deletes a vendor. Existing purchase orders keep the reference.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid vendor ID", ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

// POAdapter bridges the vendor directory into the purchase order module's
// read-only vendor port.
type POAdapter struct {
	service *Service
}

// NewPOAdapter constructs the adapter.
func NewPOAdapter(service *Service) *POAdapter {
	return &POAdapter{service: service}
}

// GetVendor resolves the projection used by merge previews.
func (a *POAdapter) GetVendor(ctx context.Context, id int64) (purchaseorders.VendorInfo, error) {
	v, err := a.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = purchaseorders.ErrNotFound
		}
		return purchaseorders.VendorInfo{}, err
	}
	return purchaseorders.VendorInfo{
		ID:         v.ID,
		VendorName: v.Name,
		Email:      v.Email,
		Phone:      v.Phone,
		Address:    v.Address,
		City:       v.City,
	}, nil
}
