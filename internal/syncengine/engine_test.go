package syncengine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pim-service/internal/models"
	"pim-service/internal/resolver"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) GetProductByItemNo(ctx context.Context, itemNo string) (*models.ProductRecord, error) {
	args := m.Called(ctx, itemNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductRecord), args.Error(1)
}

func (m *MockStore) CreateProduct(ctx context.Context, product *models.ProductRecord) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockStore) UpdateProductFields(ctx context.Context, productID uuid.UUID, fields map[string]interface{}) error {
	args := m.Called(ctx, productID, fields)
	return args.Error(0)
}

func (m *MockStore) ListVariantIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockStore) DeleteVariants(ctx context.Context, productID uuid.UUID, ids []uuid.UUID) error {
	args := m.Called(ctx, productID, ids)
	return args.Error(0)
}

func (m *MockStore) UpsertVariant(ctx context.Context, variant *models.LogisticsVariant) error {
	args := m.Called(ctx, variant)
	return args.Error(0)
}

func (m *MockStore) GetDefaultVariant(ctx context.Context, productID uuid.UUID) (*models.LogisticsVariant, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogisticsVariant), args.Error(1)
}

func (m *MockStore) UpdateVariantFields(ctx context.Context, variantID uuid.UUID, fields map[string]interface{}) error {
	args := m.Called(ctx, variantID, fields)
	return args.Error(0)
}

func (m *MockStore) ReplaceSpecifications(ctx context.Context, productID uuid.UUID, specs models.SpecList) error {
	args := m.Called(ctx, productID, specs)
	return args.Error(0)
}

func (m *MockStore) ReplaceFeatures(ctx context.Context, productID uuid.UUID, list models.StringList) error {
	args := m.Called(ctx, productID, list)
	return args.Error(0)
}

func (m *MockStore) ReplaceTags(ctx context.Context, productID uuid.UUID, list models.StringList) error {
	args := m.Called(ctx, productID, list)
	return args.Error(0)
}

func newTestEngine(store Store) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(store, logger)
}

func TestUpsertProduct_CreatesWhenMissing(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Return(nil, ErrNotFound)
	mockStore.On("CreateProduct", mock.Anything, mock.AnythingOfType("*models.ProductRecord")).
		Run(func(args mock.Arguments) {
			record := args.Get(1).(*models.ProductRecord)
			assert.Equal(t, "ITEM-001", record.ItemNo)
			assert.Equal(t, "Cordless Drill", record.Name)
			assert.NotEqual(t, uuid.Nil, record.ID)
			assert.True(t, record.Active)
		}).
		Return(nil)

	cs := resolver.ChangeSet{Product: map[string]string{"name": "Cordless Drill"}}
	productID, created, err := engine.UpsertProduct(ctx, cs, "ITEM-001")

	assert.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uuid.Nil, productID)
	mockStore.AssertExpectations(t)
}

func TestUpsertProduct_UpdatesExisting(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	existingID := uuid.New()
	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Return(&models.ProductRecord{ID: existingID, ItemNo: "ITEM-001"}, nil)
	mockStore.On("UpdateProductFields", mock.Anything, existingID, mock.Anything).
		Run(func(args mock.Arguments) {
			fields := args.Get(2).(map[string]interface{})
			assert.Equal(t, "Cordless Drill", fields["name"])
			// the natural key is never part of an update patch
			assert.NotContains(t, fields, "item_no")
		}).
		Return(nil)

	cs := resolver.ChangeSet{Product: map[string]string{
		"item_no": "ITEM-001",
		"name":    "Cordless Drill",
	}}
	productID, created, err := engine.UpsertProduct(ctx, cs, "ITEM-001")

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existingID, productID)
	mockStore.AssertExpectations(t)
}

func TestUpsertProduct_NoUpdateWhenOnlyKeyMapped(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	existingID := uuid.New()
	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Return(&models.ProductRecord{ID: existingID, ItemNo: "ITEM-001"}, nil)

	cs := resolver.ChangeSet{Product: map[string]string{"item_no": "ITEM-001"}}
	productID, created, err := engine.UpsertProduct(ctx, cs, "ITEM-001")

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existingID, productID)
	mockStore.AssertNotCalled(t, "UpdateProductFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertProduct_DuplicateKeyRace(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Return(nil, ErrNotFound)
	mockStore.On("CreateProduct", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: item_no ITEM-001", ErrDuplicateKeyRace))

	cs := resolver.ChangeSet{Product: map[string]string{"name": "Cordless Drill"}}
	_, _, err := engine.UpsertProduct(ctx, cs, "ITEM-001")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKeyRace))
	var syncErr *SyncError
	assert.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "product", syncErr.Entity)
	mockStore.AssertNumberOfCalls(t, "CreateProduct", 1)
}

func TestUpsertProduct_TimeoutRetriedOnce(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore).WithCallTimeout(20 * time.Millisecond)

	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Run(func(args mock.Arguments) {
			callCtx := args.Get(0).(context.Context)
			<-callCtx.Done()
		}).
		Return(nil, context.DeadlineExceeded)

	cs := resolver.ChangeSet{Product: map[string]string{"name": "Cordless Drill"}}
	_, _, err := engine.UpsertProduct(ctx, cs, "ITEM-001")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	mockStore.AssertNumberOfCalls(t, "GetProductByItemNo", 2)
}

func TestSyncLogisticsVariants_DeletesOrphansFirst(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	productID := uuid.New()
	keptID := uuid.New()
	orphanID := uuid.New()

	var callOrder []string
	mockStore.On("ListVariantIDs", mock.Anything, productID).
		Return([]uuid.UUID{keptID, orphanID}, nil)
	mockStore.On("DeleteVariants", mock.Anything, productID, []uuid.UUID{orphanID}).
		Run(func(mock.Arguments) { callOrder = append(callOrder, "delete") }).
		Return(nil)
	mockStore.On("UpsertVariant", mock.Anything, mock.AnythingOfType("*models.LogisticsVariant")).
		Run(func(mock.Arguments) { callOrder = append(callOrder, "upsert") }).
		Return(nil)

	incoming := []models.LogisticsVariantPayload{
		{ID: &keptID, VariantName: "Retail Box"},
		{VariantName: "Bulk Pack"},
	}
	err := engine.SyncLogisticsVariants(ctx, productID, incoming)

	assert.NoError(t, err)
	assert.Equal(t, []string{"delete", "upsert", "upsert"}, callOrder)
	mockStore.AssertExpectations(t)
}

func TestSyncLogisticsVariants_DefaultFollowsPosition(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	productID := uuid.New()
	var upserted []*models.LogisticsVariant

	mockStore.On("ListVariantIDs", mock.Anything, productID).
		Return([]uuid.UUID{}, nil)
	mockStore.On("UpsertVariant", mock.Anything, mock.AnythingOfType("*models.LogisticsVariant")).
		Run(func(args mock.Arguments) {
			upserted = append(upserted, args.Get(1).(*models.LogisticsVariant))
		}).
		Return(nil)

	incoming := []models.LogisticsVariantPayload{
		{VariantName: ""},
		{VariantName: ""},
	}
	err := engine.SyncLogisticsVariants(ctx, productID, incoming)

	assert.NoError(t, err)
	assert.Len(t, upserted, 2)
	assert.True(t, upserted[0].IsDefault)
	assert.False(t, upserted[1].IsDefault)
	assert.Equal(t, "Standard", upserted[0].VariantName)
	assert.Equal(t, "Variant 1", upserted[1].VariantName)
	assert.NotEqual(t, uuid.Nil, upserted[0].ID)
	assert.Equal(t, productID, upserted[0].ProductID)
	mockStore.AssertNotCalled(t, "DeleteVariants", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyLogisticsFields_PatchesDefaultVariant(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	productID := uuid.New()
	variantID := uuid.New()
	mockStore.On("GetDefaultVariant", mock.Anything, productID).
		Return(&models.LogisticsVariant{ID: variantID, ProductID: productID, IsDefault: true}, nil)
	mockStore.On("UpdateVariantFields", mock.Anything, variantID, mock.Anything).
		Run(func(args mock.Arguments) {
			fields := args.Get(2).(map[string]interface{})
			assert.Equal(t, "120", fields["net_length_mm"])
		}).
		Return(nil)

	err := engine.ApplyLogisticsFields(ctx, productID, map[string]string{"net_length_mm": "120"})

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestApplyLogisticsFields_CreatesDefaultWhenMissing(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	productID := uuid.New()
	mockStore.On("GetDefaultVariant", mock.Anything, productID).
		Return(nil, ErrNotFound)
	mockStore.On("UpsertVariant", mock.Anything, mock.AnythingOfType("*models.LogisticsVariant")).
		Run(func(args mock.Arguments) {
			v := args.Get(1).(*models.LogisticsVariant)
			assert.True(t, v.IsDefault)
			assert.Equal(t, "Standard", v.VariantName)
			assert.Equal(t, "4.5", *v.NetWeightKG)
		}).
		Return(nil)

	err := engine.ApplyLogisticsFields(ctx, productID, map[string]string{"net_weight_kg": "4.5"})

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestApplyLogisticsFields_NoFieldsNoCalls(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	err := engine.ApplyLogisticsFields(ctx, uuid.New(), nil)

	assert.NoError(t, err)
	mockStore.AssertNotCalled(t, "GetDefaultVariant", mock.Anything, mock.Anything)
}

func TestSyncRow_SubEntityFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	existingID := uuid.New()
	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Return(&models.ProductRecord{ID: existingID, ItemNo: "ITEM-001"}, nil)
	mockStore.On("UpdateProductFields", mock.Anything, existingID, mock.Anything).
		Return(nil)
	mockStore.On("ReplaceSpecifications", mock.Anything, existingID, mock.Anything).
		Return(errors.New("jsonb write failed"))
	mockStore.On("ReplaceFeatures", mock.Anything, existingID, mock.Anything).
		Return(nil)

	cs := resolver.ChangeSet{
		Product:           map[string]string{"name": "Cordless Drill"},
		SpecsAdditions:    []models.SpecEntry{{Key: "voltage", Value: "18"}},
		FeaturesAdditions: []string{"Brushless motor"},
	}
	outcome := engine.SyncRow(ctx, cs, "ITEM-001")

	assert.True(t, outcome.Succeeded())
	assert.Len(t, outcome.SubErrors, 1)
	assert.Equal(t, "specifications", outcome.SubErrors[0].Entity)
	// features were still attempted after the specs failure
	mockStore.AssertCalled(t, "ReplaceFeatures", mock.Anything, existingID, models.StringList{"Brushless motor"})
}

func TestSyncRow_ProductFailureStopsRow(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	mockStore.On("GetProductByItemNo", mock.Anything, "ITEM-001").
		Return(nil, errors.New("connection refused"))

	cs := resolver.ChangeSet{
		Product:        map[string]string{"name": "Cordless Drill"},
		SpecsAdditions: []models.SpecEntry{{Key: "voltage", Value: "18"}},
	}
	outcome := engine.SyncRow(ctx, cs, "ITEM-001")

	assert.False(t, outcome.Succeeded())
	assert.Error(t, outcome.ProductErr)
	mockStore.AssertNotCalled(t, "ReplaceSpecifications", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "GetDefaultVariant", mock.Anything, mock.Anything)
}

func TestReplaceAggregate_WrongPayloadType(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	engine := newTestEngine(mockStore)

	err := engine.ReplaceAggregate(ctx, uuid.New(), AggregateSpecifications, models.StringList{"wrong"})

	assert.Error(t, err)
	mockStore.AssertNotCalled(t, "ReplaceSpecifications", mock.Anything, mock.Anything, mock.Anything)
}
