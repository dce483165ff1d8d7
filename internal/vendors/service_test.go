package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
)

type memoryVendorRepo struct {
	vendors map[int64]Vendor
	nextID  int64
}

func newMemoryVendorRepo() *memoryVendorRepo {
	return &memoryVendorRepo{vendors: make(map[int64]Vendor)}
}

func (r *memoryVendorRepo) List(ctx context.Context, filters ListFilters) ([]Vendor, int, error) {
	var out []Vendor
	for _, v := range r.vendors {
		out = append(out, v)
	}
	return out, len(out), nil
}

func (r *memoryVendorRepo) Get(ctx context.Context, id int64) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	return v, nil
}

func (r *memoryVendorRepo) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	r.nextID++
	vendor.ID = r.nextID
	r.vendors[vendor.ID] = vendor
	return vendor, nil
}

func (r *memoryVendorRepo) Update(ctx context.Context, id int64, vendor Vendor) error {
	if _, ok := r.vendors[id]; !ok {
		return ErrNotFound
	}
	vendor.ID = id
	r.vendors[id] = vendor
	return nil
}

func (r *memoryVendorRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.vendors[id]; !ok {
		return ErrNotFound
	}
	delete(r.vendors, id)
	return nil
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(newMemoryVendorRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Vendor{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Get(ctx, 0)
	require.ErrorIs(t, err, ErrValidation)

	created, err := svc.Create(ctx, Vendor{Name: "Acme Supplies", City: "Pune"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Supplies", got.Name)
}

func TestPOAdapterMapsNotFound(t *testing.T) {
	repo := newMemoryVendorRepo()
	svc := NewService(repo)
	adapter := NewPOAdapter(svc)
	ctx := context.Background()

	_, err := adapter.GetVendor(ctx, 42)
	require.ErrorIs(t, err, purchaseorders.ErrNotFound)

	created, err := svc.Create(ctx, Vendor{Name: "Globex", Email: "ops@globex.test"})
	require.NoError(t, err)

	info, err := adapter.GetVendor(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Globex", info.VendorName)
	require.Equal(t, "ops@globex.test", info.Email)
}
