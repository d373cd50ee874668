package procurement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/masterdata/products"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

const testOrg int64 = 3

type memoryProcRepo struct {
	mu       sync.Mutex
	pos      map[int64]PurchaseOrder
	lots     []inventory.Lot
	balances map[int64]inventory.Balance
	nextID   int64
	failLot  string
	onLot    func()
}

type memoryProcTx struct {
	pos      map[int64]PurchaseOrder
	lots     []inventory.Lot
	balances map[int64]inventory.Balance
	nextID   int64
	failLot  string
	onLot    func()
}

type memoryInventoryTx struct {
	tx *memoryProcTx
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{pos: make(map[int64]PurchaseOrder), balances: make(map[int64]inventory.Balance)}
}

// WithTx serializes callers and publishes staged writes only when fn succeeds.
func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryProcTx{
		pos:      make(map[int64]PurchaseOrder, len(r.pos)),
		lots:     append([]inventory.Lot(nil), r.lots...),
		balances: make(map[int64]inventory.Balance, len(r.balances)),
		nextID:   r.nextID,
		failLot:  r.failLot,
		onLot:    r.onLot,
	}
	for k, v := range r.pos {
		tx.pos[k] = v
	}
	for k, v := range r.balances {
		tx.balances[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.pos, r.lots, r.balances, r.nextID = tx.pos, tx.lots, tx.balances, tx.nextID
	return nil
}

func (r *memoryProcRepo) GetPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.pos[id]
	if !ok || po.OrgID != orgID {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	po.Lines = append([]POLine(nil), po.Lines...)
	return po, nil
}

func (r *memoryProcRepo) ListPOs(ctx context.Context, orgID int64, filter ListFilter) ([]PurchaseOrder, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []PurchaseOrder
	for _, po := range r.pos {
		if po.OrgID == orgID && (filter.Status == "" || po.Status == filter.Status) {
			items = append(items, po)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (r *memoryProcRepo) CountByStatus(ctx context.Context, orgID int64) (map[POStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[POStatus]int)
	for _, po := range r.pos {
		if po.OrgID == orgID {
			counts[po.Status]++
		}
	}
	return counts, nil
}

func (t *memoryProcTx) LockPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, ok := t.pos[id]
	if !ok || po.OrgID != orgID {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	po.Lines = append([]POLine(nil), po.Lines...)
	return po, nil
}

func (t *memoryProcTx) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	t.nextID++
	po.ID = t.nextID
	t.pos[po.ID] = po
	return po.ID, nil
}

func (t *memoryProcTx) UpdateOrdered(ctx context.Context, po PurchaseOrder) error {
	current := t.pos[po.ID]
	if current.Status != POStatusOrdered {
		return shared.Conflictf("purchase order changed by another request, refresh and retry")
	}
	po.Lines, po.Taxes, po.Status = current.Lines, current.Taxes, current.Status
	t.pos[po.ID] = po
	return nil
}

func (t *memoryProcTx) ReplaceLines(ctx context.Context, poID int64, lines []POLine) error {
	po := t.pos[poID]
	po.Lines = nil
	for _, l := range lines {
		t.nextID++
		l.ID = t.nextID
		l.PurchaseOrderID = poID
		po.Lines = append(po.Lines, l)
	}
	t.pos[poID] = po
	return nil
}

func (t *memoryProcTx) ReplaceTaxes(ctx context.Context, poID int64, taxes []POTax) error {
	po := t.pos[poID]
	po.Taxes = append([]POTax(nil), taxes...)
	t.pos[poID] = po
	return nil
}

func (t *memoryProcTx) SaveReceipts(ctx context.Context, poID int64, receipts []LineReceipt) error {
	po := t.pos[poID]
	po.Lines = append([]POLine(nil), po.Lines...)
	applyReceipts(&po, receipts)
	t.pos[poID] = po
	return nil
}

func (t *memoryProcTx) TransitionStatus(ctx context.Context, orgID, id int64, from, to POStatus, change StatusChange) error {
	po, ok := t.pos[id]
	if !ok || po.OrgID != orgID || po.Status != from {
		return shared.Conflictf("purchase order changed by another request, refresh and retry")
	}
	po.Status = to
	applyChange(&po, change)
	t.pos[id] = po
	return nil
}

func (t *memoryProcTx) Inventory() inventory.TxRepository { return &memoryInventoryTx{tx: t} }

func (t *memoryProcTx) Accounts() accounts.TxRepository { return nil }

func (m *memoryInventoryTx) InsertLot(ctx context.Context, lot inventory.Lot) (int64, error) {
	if m.tx.onLot != nil {
		m.tx.onLot()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if lot.LotNumber == m.tx.failLot {
		return 0, errors.New("disk full")
	}
	lot.ID = int64(len(m.tx.lots) + 1)
	m.tx.lots = append(m.tx.lots, lot)
	return lot.ID, nil
}

func (m *memoryInventoryTx) InsertMovement(ctx context.Context, mv inventory.Movement) (int64, error) {
	return 1, nil
}

func (m *memoryInventoryTx) GetBalanceForUpdate(ctx context.Context, orgID, productID int64) (inventory.Balance, error) {
	b, ok := m.tx.balances[productID]
	if !ok {
		return inventory.Balance{}, inventory.ErrBalanceNotFound
	}
	return b, nil
}

func (m *memoryInventoryTx) UpsertBalance(ctx context.Context, b inventory.Balance) error {
	m.tx.balances[b.ProductID] = b
	return nil
}

type fakeAccounts struct {
	opened map[int64]accounts.OpenInput
	fail   bool
}

func (f *fakeAccounts) OpenForOrder(ctx context.Context, tx accounts.TxRepository, orgID int64, input accounts.OpenInput) (accounts.Account, error) {
	if f.fail {
		return accounts.Account{}, errors.New("accounts unavailable")
	}
	f.opened[input.OrderID] = input
	return accounts.Account{OrderID: input.OrderID, Kind: input.Kind, TotalAmount: input.Total}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingPublisher struct {
	events []ReceiptPostedEvent
}

func (p *recordingPublisher) PublishReceipt(ctx context.Context, evt ReceiptPostedEvent) error {
	p.events = append(p.events, evt)
	return nil
}

type fakeCatalog map[int64]products.Product

func (c fakeCatalog) Snapshot(ctx context.Context, orgID int64, ids []int64) (products.Snapshot, error) {
	snap := products.Snapshot{
		Products: make(map[int64]pricing.ProductSnapshot),
		Cost:     make(map[int64]decimal.Decimal),
		Sale:     make(map[int64]decimal.Decimal),
	}
	for _, id := range ids {
		p, ok := c[id]
		if !ok {
			return products.Snapshot{}, shared.Validationf(fmt.Sprintf("product %d does not exist", id))
		}
		snap.Products[id] = p.Snapshot()
		snap.Cost[id] = p.CostPrice
		snap.Sale[id] = p.SalePrice
	}
	return snap, nil
}

type fakeTaxes map[int64]pricing.TaxRate

func (f fakeTaxes) Snapshot(ctx context.Context, orgID int64, ids []int64) ([]pricing.TaxRate, error) {
	out := make([]pricing.TaxRate, 0, len(ids))
	for _, id := range ids {
		out = append(out, f[id])
	}
	return out, nil
}

type fixture struct {
	repo   *memoryProcRepo
	svc    *Service
	accts  *fakeAccounts
	idem   *memoryIdempotency
	pub    *recordingPublisher
	redis  *miniredis.Miniredis
	locker *shared.Locker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		repo:   newMemoryProcRepo(),
		accts:  &fakeAccounts{opened: make(map[int64]accounts.OpenInput)},
		idem:   &memoryIdempotency{keys: make(map[string]string)},
		pub:    &recordingPublisher{},
		redis:  mr,
		locker: shared.NewLocker(client, time.Minute),
	}
	f.svc = NewService(f.repo, Deps{
		Catalog: fakeCatalog{
			1: {ID: 1, OrgID: testOrg, UnitOfMeasure: pricing.UnitEach, CostPrice: dec("100")},
			2: {ID: 2, OrgID: testOrg, UnitOfMeasure: pricing.UnitKilo, CostPrice: dec("8"), AverageQuantityPerStockedUnit: dec("12.5")},
		},
		Taxes:       fakeTaxes{4: {TaxID: 4, Name: "VAT 21", Rate: dec("21")}},
		Inventory:   inventory.NewService(nil),
		Accounts:    f.accts,
		Locks:       f.locker,
		Idempotency: f.idem,
		Publisher:   f.pub,
	})
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expiry() shared.Date {
	return shared.NewDate(time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC))
}

// orderInput yields a subtotal of 1000 with a 20% order discount and 21% tax.
func orderInput() PurchaseOrderInput {
	return PurchaseOrderInput{
		SupplierID:            40,
		GlobalDiscountPercent: dec("20"),
		TaxIDs:                []int64{4},
		Lines: []POLineInput{
			{ProductID: 1, Quantity: dec("6")},
			{ProductID: 2, Quantity: dec("4")},
		},
	}
}

func (f *fixture) inTransitOrder(t *testing.T) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := f.svc.CreatePurchaseOrder(ctx, testOrg, orderInput())
	require.NoError(t, err)
	_, err = f.svc.MarkInTransit(ctx, testOrg, po.ID, InTransitInput{DeliveryDate: expiry(), LogisticsProvider: "Andreani"})
	require.NoError(t, err)
	stored, err := f.svc.GetPurchaseOrder(ctx, testOrg, po.ID)
	require.NoError(t, err)
	return stored
}

func receiveAll(po PurchaseOrder) ReceiveInput {
	items := make([]ReceiveItem, 0, len(po.Lines))
	for i, l := range po.Lines {
		items = append(items, ReceiveItem{
			LineID:           l.ID,
			Received:         true,
			LotNumber:        fmt.Sprintf("LOT-%d", i+1),
			ExpirationDate:   expiry(),
			MeasuredQuantity: l.Quantity,
		})
	}
	return ReceiveInput{Items: items}
}

func TestPOStatusTransitions(t *testing.T) {
	all := []POStatus{POStatusOrdered, POStatusInTransit, POStatusReceived, POStatusCancelled}
	allowed := map[[2]POStatus]bool{
		{POStatusOrdered, POStatusInTransit}:   true,
		{POStatusOrdered, POStatusCancelled}:   true,
		{POStatusInTransit, POStatusReceived}:  true,
		{POStatusInTransit, POStatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]POStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, POStatusReceived.IsTerminal())
	assert.True(t, POStatusOrdered.IsEditable())
	assert.False(t, POStatusInTransit.IsEditable())
}

func TestCreateAppliesPurchasePolicy(t *testing.T) {
	f := newFixture(t)
	po, err := f.svc.CreatePurchaseOrder(context.Background(), testOrg, orderInput())
	require.NoError(t, err)

	assert.Equal(t, POStatusOrdered, po.Status)
	assert.True(t, po.Lines[1].Estimated)
	assert.True(t, dec("400").Equal(po.Lines[1].Subtotal))
	assert.True(t, dec("1000").Equal(po.Subtotal))
	assert.True(t, dec("200").Equal(po.GlobalDiscount))
	assert.True(t, dec("210").Equal(po.TaxAmount))
	assert.True(t, dec("1010").Equal(po.TotalAmount))
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noSupplier := orderInput()
	noSupplier.SupplierID = 0
	_, err := f.svc.CreatePurchaseOrder(ctx, testOrg, noSupplier)
	require.ErrorIs(t, err, shared.ErrValidation)

	badQty := orderInput()
	badQty.Lines[0].Quantity = dec("-2")
	_, err = f.svc.CreatePurchaseOrder(ctx, testOrg, badQty)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "line 1: quantity must be greater than zero", shared.Reason(err))
	assert.Empty(t, f.repo.pos)
}

func TestUpdateOrderedOnlyWhileOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreatePurchaseOrder(ctx, testOrg, orderInput())
	require.NoError(t, err)

	in := orderInput()
	in.GlobalDiscountPercent = decimal.Zero
	updated, err := f.svc.UpdateOrdered(ctx, testOrg, po.ID, in)
	require.NoError(t, err)
	assert.True(t, dec("1210").Equal(updated.TotalAmount))

	_, err = f.svc.MarkInTransit(ctx, testOrg, po.ID, InTransitInput{DeliveryDate: expiry(), LogisticsProvider: "OCA"})
	require.NoError(t, err)
	_, err = f.svc.UpdateOrdered(ctx, testOrg, po.ID, in)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMarkInTransitRequiresShipmentData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreatePurchaseOrder(ctx, testOrg, orderInput())
	require.NoError(t, err)

	_, err = f.svc.MarkInTransit(ctx, testOrg, po.ID, InTransitInput{LogisticsProvider: "OCA"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.MarkInTransit(ctx, testOrg, po.ID, InTransitInput{DeliveryDate: expiry(), LogisticsProvider: " "})
	require.ErrorIs(t, err, shared.ErrValidation)

	moved, err := f.svc.MarkInTransit(ctx, testOrg, po.ID, InTransitInput{DeliveryDate: expiry(), LogisticsProvider: "OCA"})
	require.NoError(t, err)
	assert.Equal(t, POStatusInTransit, moved.Status)
	assert.Equal(t, "OCA", moved.LogisticsProvider)
	require.NotNil(t, moved.InTransitAt)
}

func TestReceiveCreatesLotsAndPayable(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)

	received, err := f.svc.ReceivePurchaseOrder(context.Background(), testOrg, po.ID, receiveAll(po))
	require.NoError(t, err)
	assert.Equal(t, POStatusReceived, received.Status)
	require.NotNil(t, received.ReceivedAt)
	for _, l := range received.Lines {
		assert.True(t, l.Received)
		assert.NotZero(t, l.LotID)
	}

	require.Len(t, f.repo.lots, 2)
	assert.Equal(t, "LOT-1", f.repo.lots[0].LotNumber)
	assert.True(t, dec("100").Equal(f.repo.lots[0].UnitCost))
	assert.True(t, dec("6").Equal(f.repo.balances[1].Qty))

	payable, ok := f.accts.opened[po.ID]
	require.True(t, ok)
	assert.Equal(t, accounts.KindPayable, payable.Kind)
	assert.Equal(t, int64(40), payable.CounterpartyID)
	assert.True(t, dec("1010").Equal(payable.Total))

	require.Len(t, f.pub.events, 1)
	assert.Len(t, f.pub.events[0].Lines, 2)
	assert.Len(t, f.idem.keys, 1)
	assert.False(t, f.redis.Exists(shared.OrderLockKey("purchase", testOrg, po.ID)))
}

func TestReceiveSkipsUnmarkedLines(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)

	input := receiveAll(po)
	input.Items[1].Received = false
	input.Items[1].LotNumber = ""
	received, err := f.svc.ReceivePurchaseOrder(context.Background(), testOrg, po.ID, input)
	require.NoError(t, err)
	require.Len(t, f.repo.lots, 1)
	assert.True(t, received.Lines[0].Received)
	assert.False(t, received.Lines[1].Received)
}

func TestReceiveValidatesEveryItemFirst(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*ReceiveInput)
		want   string
	}{
		{"missing lot", func(in *ReceiveInput) { in.Items[1].LotNumber = " " }, "line 2: lot number is required"},
		{"missing expiry", func(in *ReceiveInput) { in.Items[1].ExpirationDate = shared.Date{} }, "line 2: expiration date is required"},
		{"zero measure", func(in *ReceiveInput) { in.Items[1].MeasuredQuantity = decimal.Zero }, "line 2: measured quantity must be greater than zero"},
		{"nothing received", func(in *ReceiveInput) {
			for i := range in.Items {
				in.Items[i].Received = false
			}
		}, "mark at least one line as received"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := receiveAll(po)
			tc.mutate(&input)
			_, err := f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, input)
			require.ErrorIs(t, err, shared.ErrValidation)
			assert.Equal(t, tc.want, shared.Reason(err))
		})
	}
	assert.Empty(t, f.repo.lots)
	assert.Empty(t, f.idem.keys)
	assert.Equal(t, POStatusInTransit, f.repo.pos[po.ID].Status)
}

func TestReceiveRollsBackOnLateFailure(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)
	ctx := context.Background()

	f.repo.failLot = "LOT-2"
	_, err := f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.Error(t, err)
	assert.Empty(t, f.repo.lots)
	assert.Empty(t, f.repo.balances)
	assert.Equal(t, POStatusInTransit, f.repo.pos[po.ID].Status)
	assert.Empty(t, f.idem.keys)

	f.repo.failLot = ""
	f.accts.fail = true
	_, err = f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.Error(t, err)
	assert.Empty(t, f.repo.lots)
	assert.Equal(t, POStatusInTransit, f.repo.pos[po.ID].Status)

	f.accts.fail = false
	_, err = f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.NoError(t, err)
	assert.Len(t, f.repo.lots, 2)
}

func TestReceiveReleasesKeyWhenRequestIsCancelled(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.repo.onLot = cancel
	_, err := f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "line 1: context canceled", err.Error())
	assert.Equal(t, POStatusInTransit, f.repo.pos[po.ID].Status)
	assert.Empty(t, f.idem.keys)

	f.repo.onLot = nil
	got, err := f.svc.ReceivePurchaseOrder(context.Background(), testOrg, po.ID, receiveAll(po))
	require.NoError(t, err)
	assert.Equal(t, POStatusReceived, got.Status)
}

func TestReceiveRejectsWhileLocked(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)
	ctx := context.Background()

	release, err := f.locker.Acquire(ctx, shared.OrderLockKey("purchase", testOrg, po.ID))
	require.NoError(t, err)
	_, err = f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.ErrorIs(t, err, shared.ErrLockHeld)
	release()

	_, err = f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.NoError(t, err)
}

func TestConcurrentReceiveCreatesLotsOnce(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, shared.ErrLockHeld) || errors.Is(err, shared.ErrInvalidState) || errors.Is(err, shared.ErrConflict), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.repo.lots, 2)
	assert.Len(t, f.accts.opened, 1)
}

func TestTerminalPurchaseOrdersNeverChange(t *testing.T) {
	f := newFixture(t)
	po := f.inTransitOrder(t)
	ctx := context.Background()

	_, err := f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.NoError(t, err)

	_, err = f.svc.CancelPurchaseOrder(ctx, testOrg, po.ID, CancelInput{Reason: "wrong supplier"})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.MarkInTransit(ctx, testOrg, po.ID, InTransitInput{DeliveryDate: expiry(), LogisticsProvider: "OCA"})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.ReceivePurchaseOrder(ctx, testOrg, po.ID, receiveAll(po))
	require.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, POStatusReceived, f.repo.pos[po.ID].Status)

	cancelled, err := f.svc.CreatePurchaseOrder(ctx, testOrg, orderInput())
	require.NoError(t, err)
	_, err = f.svc.CancelPurchaseOrder(ctx, testOrg, cancelled.ID, CancelInput{Reason: "duplicate"})
	require.NoError(t, err)
	_, err = f.svc.MarkInTransit(ctx, testOrg, cancelled.ID, InTransitInput{DeliveryDate: expiry(), LogisticsProvider: "OCA"})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, "duplicate", f.repo.pos[cancelled.ID].CancellationReason)
}

func TestListAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.inTransitOrder(t)
	_, err := f.svc.CreatePurchaseOrder(ctx, testOrg, orderInput())
	require.NoError(t, err)

	items, page, err := f.svc.ListPurchaseOrders(ctx, testOrg, ListFilter{Status: POStatusOrdered})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Total)

	counts, err := f.svc.CountByStatus(ctx, testOrg)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[POStatusInTransit])
	assert.Equal(t, 1, counts[POStatusOrdered])

	_, _, err = f.svc.ListPurchaseOrders(ctx, testOrg, ListFilter{Status: "LOST"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
