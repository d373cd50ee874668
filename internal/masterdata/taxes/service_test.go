package taxes

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/masterdata/shared"
	coreshared "github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryRepo struct {
	items  map[int64]Tax
	nextID int64
}

func (m *memoryRepo) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Tax, int, error) {
	var out []Tax
	for _, t := range m.items {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, orgID, id int64) (Tax, error) {
	t, ok := m.items[id]
	if !ok || t.OrgID != orgID {
		return Tax{}, coreshared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) GetMany(ctx context.Context, orgID int64, ids []int64) ([]Tax, error) {
	var out []Tax
	for _, id := range ids {
		if t, err := m.Get(ctx, orgID, id); err == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(ctx context.Context, t Tax) (Tax, error) {
	m.nextID++
	t.ID = m.nextID
	m.items[t.ID] = t
	return t, nil
}

func (m *memoryRepo) Update(ctx context.Context, t Tax) error {
	if _, err := m.Get(ctx, t.OrgID, t.ID); err != nil {
		return err
	}
	m.items[t.ID] = t
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, orgID, id int64) error {
	delete(m.items, id)
	return nil
}

func TestTaxRateBounds(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[int64]Tax{}})
	ctx := context.Background()

	for _, rate := range []string{"-1", "100.01"} {
		_, err := svc.Create(ctx, 1, Tax{Code: "VAT", Name: "VAT", Rate: decimal.RequireFromString(rate)})
		require.ErrorIs(t, err, coreshared.ErrValidation)
	}
	created, err := svc.Create(ctx, 1, Tax{Code: " vat ", Name: "VAT", Rate: decimal.NewFromInt(100), IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "VAT", created.Code)
}

func TestSnapshotCopiesRatesAtApplicationTime(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[int64]Tax{}})
	ctx := context.Background()

	vat, err := svc.Create(ctx, 1, Tax{Code: "VAT", Name: "VAT 21", Rate: decimal.NewFromInt(21), IsActive: true})
	require.NoError(t, err)
	old, err := svc.Create(ctx, 1, Tax{Code: "OLD", Name: "Retired", Rate: decimal.NewFromInt(5)})
	require.NoError(t, err)

	rates, err := svc.Snapshot(ctx, 1, []int64{vat.ID, vat.ID})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].Rate.Equal(decimal.NewFromInt(21)))

	vat.Rate = decimal.NewFromInt(25)
	_, err = svc.Update(ctx, 1, vat.ID, vat)
	require.NoError(t, err)
	assert.True(t, rates[0].Rate.Equal(decimal.NewFromInt(21)), "snapshot must not follow later rate changes")

	_, err = svc.Snapshot(ctx, 1, []int64{old.ID})
	require.ErrorIs(t, err, coreshared.ErrValidation)
	_, err = svc.Snapshot(ctx, 2, []int64{vat.ID})
	require.ErrorIs(t, err, coreshared.ErrValidation)

	rates, err = svc.Snapshot(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, rates)
}
