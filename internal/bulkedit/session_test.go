package bulkedit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"pim-service/internal/models"
	"pim-service/internal/syncengine"
)

// editStore is a minimal concurrent-safe store for session saves. Bulk edit
// only routes to product and logistics, so aggregates are no-ops.
type editStore struct {
	mu            sync.Mutex
	products      map[string]*models.ProductRecord
	variantFields map[uuid.UUID]map[string]interface{}
	defaults      map[uuid.UUID]*models.LogisticsVariant
	failUpdateFor string
	updates       int
}

func newEditStore(records ...*models.ProductRecord) *editStore {
	s := &editStore{
		products:      make(map[string]*models.ProductRecord),
		variantFields: make(map[uuid.UUID]map[string]interface{}),
		defaults:      make(map[uuid.UUID]*models.LogisticsVariant),
	}
	for _, r := range records {
		s.products[r.ItemNo] = r
		if len(r.Logistics) > 0 {
			s.defaults[r.ID] = r.Logistics[0]
		}
	}
	return s
}

func (s *editStore) GetProductByItemNo(ctx context.Context, itemNo string) (*models.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[itemNo]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *editStore) CreateProduct(ctx context.Context, product *models.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ItemNo] = product
	return nil
}

func (s *editStore) UpdateProductFields(ctx context.Context, productID uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID != productID {
			continue
		}
		if p.ItemNo == s.failUpdateFor {
			return errors.New("write conflict")
		}
		if v, ok := fields["name"].(string); ok {
			p.Name = v
		}
		if v, ok := fields["brand"].(string); ok {
			p.Brand = &v
		}
		s.updates++
		return nil
	}
	return syncengine.ErrNotFound
}

func (s *editStore) ListVariantIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *editStore) DeleteVariants(ctx context.Context, productID uuid.UUID, ids []uuid.UUID) error {
	return nil
}

func (s *editStore) UpsertVariant(ctx context.Context, variant *models.LogisticsVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[variant.ProductID] = variant
	return nil
}

func (s *editStore) GetDefaultVariant(ctx context.Context, productID uuid.UUID) (*models.LogisticsVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.defaults[productID]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	return v, nil
}

func (s *editStore) UpdateVariantFields(ctx context.Context, variantID uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, ok := s.variantFields[variantID]
	if !ok {
		merged = make(map[string]interface{})
		s.variantFields[variantID] = merged
	}
	for k, v := range fields {
		merged[k] = v
	}
	return nil
}

func (s *editStore) ReplaceSpecifications(ctx context.Context, productID uuid.UUID, specs models.SpecList) error {
	return nil
}

func (s *editStore) ReplaceFeatures(ctx context.Context, productID uuid.UUID, list models.StringList) error {
	return nil
}

func (s *editStore) ReplaceTags(ctx context.Context, productID uuid.UUID, list models.StringList) error {
	return nil
}

var _ syncengine.Store = (*editStore)(nil)

func testRecord(itemNo, name string) *models.ProductRecord {
	return &models.ProductRecord{ID: uuid.New(), ItemNo: itemNo, Name: name}
}

func editTemplate() *models.ImportTemplate {
	return &models.ImportTemplate{
		ID:   uuid.New(),
		Name: "spreadsheet",
		Mapping: models.MappingConfig{
			{SourceColumn: "Item No", TargetEntity: models.TargetProduct, TargetField: "item_no"},
			{SourceColumn: "Name", TargetEntity: models.TargetProduct, TargetField: "name"},
			{SourceColumn: "Brand", TargetEntity: models.TargetProduct, TargetField: "brand"},
			{SourceColumn: "Net Weight", TargetEntity: models.TargetLogistics, TargetField: "net_weight_kg"},
		},
	}
}

func newTestSession(store syncengine.Store) *Session {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewSession(syncengine.New(store, logger), logger)
}

func TestSession_ModesAreMutuallyExclusive(t *testing.T) {
	record := testRecord("ITEM-001", "Drill")
	session := newTestSession(newEditStore(record))

	assert.NoError(t, session.EnterBulkEdit([]models.ProductRecord{*record}))
	assert.Equal(t, StateEditing, session.State())
	assert.ErrorIs(t, session.EnterRowEdit(record), ErrBulkActive)

	session.Cancel()
	assert.Equal(t, StateIdle, session.State())

	assert.NoError(t, session.EnterRowEdit(record))
	assert.Equal(t, StateEditingRow, session.State())
	assert.ErrorIs(t, session.EnterBulkEdit([]models.ProductRecord{*record}), ErrRowEditActive)
}

func TestSession_SetFieldRules(t *testing.T) {
	record := testRecord("ITEM-001", "Drill")
	session := newTestSession(newEditStore(record))

	// no edits before entering a mode
	assert.ErrorIs(t, session.SetField(record.ID.String(), "name", "X"), ErrNotEditing)

	assert.NoError(t, session.EnterBulkEdit([]models.ProductRecord{*record}))

	assert.NoError(t, session.SetField(record.ID.String(), "name", "Impact Drill"))
	value, ok := session.Field(record.ID.String(), "name")
	assert.True(t, ok)
	assert.Equal(t, "Impact Drill", value)

	// the natural key is read-only
	assert.Error(t, session.SetField(record.ID.String(), "item_no", "ITEM-999"))

	assert.ErrorIs(t, session.SetField(uuid.NewString(), "name", "X"), ErrUnknownRecord)
}

func TestSession_SnapshotFlattensFirstVariant(t *testing.T) {
	weight := "4.5"
	record := testRecord("ITEM-001", "Drill")
	record.Logistics = []*models.LogisticsVariant{
		{ID: uuid.New(), ProductID: record.ID, VariantName: "Standard", IsDefault: true, NetWeightKG: &weight},
	}
	session := newTestSession(newEditStore(record))

	assert.NoError(t, session.EnterRowEdit(record))

	value, ok := session.Field(record.ID.String(), "net_weight_kg")
	assert.True(t, ok)
	assert.Equal(t, "4.5", value)

	value, ok = session.Field(record.ID.String(), "item_no")
	assert.True(t, ok)
	assert.Equal(t, "ITEM-001", value)
}

func TestSession_CancelDiscardsWithoutWrites(t *testing.T) {
	record := testRecord("ITEM-001", "Drill")
	store := newEditStore(record)
	session := newTestSession(store)

	assert.NoError(t, session.EnterBulkEdit([]models.ProductRecord{*record}))
	assert.NoError(t, session.SetField(record.ID.String(), "name", "Changed"))
	session.Cancel()

	assert.Equal(t, StateIdle, session.State())
	assert.Equal(t, 0, store.updates)
	assert.Equal(t, "Drill", store.products["ITEM-001"].Name)
}

func TestSaveAll_AppliesBufferedEdits(t *testing.T) {
	first := testRecord("ITEM-001", "Drill")
	second := testRecord("ITEM-002", "Saw")
	store := newEditStore(first, second)
	session := newTestSession(store)

	assert.NoError(t, session.EnterBulkEdit([]models.ProductRecord{*first, *second}))
	assert.NoError(t, session.SetField(first.ID.String(), "name", "Impact Drill"))
	assert.NoError(t, session.SetField(second.ID.String(), "brand", "Makira"))

	result, err := session.SaveAll(context.Background(), editTemplate())

	assert.NoError(t, err)
	assert.Len(t, result.Succeeded, 2)
	assert.Empty(t, result.Failed)
	assert.Equal(t, StateIdle, session.State())
	assert.Equal(t, "Impact Drill", store.products["ITEM-001"].Name)
	assert.Equal(t, "Makira", *store.products["ITEM-002"].Brand)
}

func TestSaveAll_FailuresAreIsolated(t *testing.T) {
	first := testRecord("ITEM-001", "Drill")
	second := testRecord("ITEM-002", "Saw")
	store := newEditStore(first, second)
	store.failUpdateFor = "ITEM-001"
	session := newTestSession(store)

	assert.NoError(t, session.EnterBulkEdit([]models.ProductRecord{*first, *second}))
	assert.NoError(t, session.SetField(first.ID.String(), "name", "Impact Drill"))
	assert.NoError(t, session.SetField(second.ID.String(), "name", "Table Saw"))

	result, err := session.SaveAll(context.Background(), editTemplate())

	assert.NoError(t, err)
	assert.Equal(t, []string{second.ID.String()}, result.Succeeded)
	assert.Len(t, result.Failed, 1)
	assert.Equal(t, first.ID.String(), result.Failed[0].ID)
	assert.Equal(t, "Table Saw", store.products["ITEM-002"].Name)
	assert.Equal(t, StateIdle, session.State())
}

func TestSaveAll_RequiresBulkMode(t *testing.T) {
	record := testRecord("ITEM-001", "Drill")
	session := newTestSession(newEditStore(record))

	_, err := session.SaveAll(context.Background(), editTemplate())
	assert.ErrorIs(t, err, ErrNotEditing)

	assert.NoError(t, session.EnterRowEdit(record))
	_, err = session.SaveAll(context.Background(), editTemplate())
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestSaveRow_SavesOneRecordAndReturnsToIdle(t *testing.T) {
	record := testRecord("ITEM-001", "Drill")
	store := newEditStore(record)
	session := newTestSession(store)

	assert.NoError(t, session.EnterRowEdit(record))
	assert.NoError(t, session.SetField(record.ID.String(), "name", "Impact Drill"))

	err := session.SaveRow(context.Background(), record.ID.String(), editTemplate())

	assert.NoError(t, err)
	assert.Equal(t, "Impact Drill", store.products["ITEM-001"].Name)
	assert.Equal(t, StateIdle, session.State())
}

func TestSaveRow_UnknownRecord(t *testing.T) {
	record := testRecord("ITEM-001", "Drill")
	session := newTestSession(newEditStore(record))

	assert.NoError(t, session.EnterRowEdit(record))
	err := session.SaveRow(context.Background(), uuid.NewString(), editTemplate())

	assert.ErrorIs(t, err, ErrUnknownRecord)
}

func TestSaveRow_RoutesLogisticsThroughMapping(t *testing.T) {
	weight := "4.5"
	variant := &models.LogisticsVariant{ID: uuid.New(), VariantName: "Standard", IsDefault: true, NetWeightKG: &weight}
	record := testRecord("ITEM-001", "Drill")
	variant.ProductID = record.ID
	record.Logistics = []*models.LogisticsVariant{variant}

	store := newEditStore(record)
	session := newTestSession(store)

	assert.NoError(t, session.EnterRowEdit(record))
	assert.NoError(t, session.SetField(record.ID.String(), "net_weight_kg", "5.0"))

	err := session.SaveRow(context.Background(), record.ID.String(), editTemplate())

	assert.NoError(t, err)
	assert.Equal(t, "5.0", store.variantFields[variant.ID]["net_weight_kg"])
}
