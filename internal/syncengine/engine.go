// Package syncengine performs idempotent create-or-update synchronization of
// a product record and its dependent collections against the backing store.
//
// Products are resolved by natural key (item_no). Logistics variants are
// reconciled by generated id with delete-on-save semantics; specifications,
// features and tags are whole-array aggregates replaced per save. Sub-entity
// operations are attempted independently: a failure in one never rolls back a
// prior success.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pim-service/internal/models"
	"pim-service/internal/resolver"
)

// DefaultCallTimeout bounds every single store call.
const DefaultCallTimeout = 10 * time.Second

// AggregateKind selects which per-product aggregate a replace targets.
type AggregateKind string

const (
	AggregateSpecifications AggregateKind = "specifications"
	AggregateFeatures       AggregateKind = "features"
	AggregateTags           AggregateKind = "tags"
)

type Engine struct {
	store       Store
	logger      *logrus.Logger
	callTimeout time.Duration
}

func New(store Store, logger *logrus.Logger) *Engine {
	return &Engine{
		store:       store,
		logger:      logger,
		callTimeout: DefaultCallTimeout,
	}
}

// WithCallTimeout overrides the per-store-call deadline.
func (e *Engine) WithCallTimeout(d time.Duration) *Engine {
	e.callTimeout = d
	return e
}

// call runs one store operation under the per-call deadline. A deadline
// overrun is retried once, then surfaced as ErrTimeout.
func (e *Engine) call(ctx context.Context, op func(ctx context.Context) error) error {
	run := func() error {
		cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		return op(cctx)
	}

	err := run()
	if errors.Is(err, context.DeadlineExceeded) {
		err = run()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	return err
}

// UpsertProduct creates or updates the product identified by itemNo from the
// change set's product fields. Returns the product id and whether a new row
// was created. The natural key itself is never written on update.
func (e *Engine) UpsertProduct(ctx context.Context, cs resolver.ChangeSet, itemNo string) (uuid.UUID, bool, error) {
	var existing *models.ProductRecord
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		existing, err = e.store.GetProductByItemNo(ctx, itemNo)
		return err
	})

	switch {
	case err == nil:
		updates := productUpdates(cs.Product)
		if len(updates) == 0 {
			return existing.ID, false, nil
		}
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.UpdateProductFields(ctx, existing.ID, updates)
		})
		if err != nil {
			return uuid.Nil, false, &SyncError{Entity: "product", Err: err}
		}
		return existing.ID, false, nil

	case errors.Is(err, ErrNotFound):
		record := newProductRecord(cs.Product, itemNo)
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.CreateProduct(ctx, record)
		})
		if err != nil {
			return uuid.Nil, false, &SyncError{Entity: "product", Err: err}
		}
		return record.ID, true, nil

	default:
		return uuid.Nil, false, &SyncError{Entity: "product", Err: err}
	}
}

// SyncLogisticsVariants reconciles the persisted variant set of a product
// against an incoming ordered list:
//
//  1. incoming variants without an id get a fresh one (new variant)
//  2. is_default is forced from list position: index 0 is the default,
//     whatever flags the caller supplied
//  3. persisted ids absent from the incoming set are deleted first
//  4. every incoming variant is upserted keyed by its own id
//
// Delete-then-upsert order is mandatory: it avoids a transient second default
// when an id is reused.
func (e *Engine) SyncLogisticsVariants(ctx context.Context, productID uuid.UUID, incoming []models.LogisticsVariantPayload) error {
	variants := make([]*models.LogisticsVariant, len(incoming))
	incomingIDs := make(map[uuid.UUID]bool, len(incoming))
	for i, p := range incoming {
		v := payloadToVariant(p)
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		v.ProductID = productID
		v.IsDefault = i == 0
		if v.VariantName == "" {
			if i == 0 {
				v.VariantName = "Standard"
			} else {
				v.VariantName = fmt.Sprintf("Variant %d", i)
			}
		}
		variants[i] = v
		incomingIDs[v.ID] = true
	}

	var persistedIDs []uuid.UUID
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		persistedIDs, err = e.store.ListVariantIDs(ctx, productID)
		return err
	})
	if err != nil {
		return &SyncError{Entity: "logistics", Err: err}
	}

	var toDelete []uuid.UUID
	for _, id := range persistedIDs {
		if !incomingIDs[id] {
			toDelete = append(toDelete, id)
		}
	}

	if len(toDelete) > 0 {
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.DeleteVariants(ctx, productID, toDelete)
		})
		if err != nil {
			return &SyncError{Entity: "logistics", Err: err}
		}
	}

	for _, v := range variants {
		v := v
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.UpsertVariant(ctx, v)
		})
		if err != nil {
			return &SyncError{Entity: "logistics", Err: err}
		}
	}

	return nil
}

// ApplyLogisticsFields patches resolved logistics columns onto the product's
// default variant, creating one when the product has no variants yet. This is
// the import path: a flat row addresses one variant, and that is the default.
func (e *Engine) ApplyLogisticsFields(ctx context.Context, productID uuid.UUID, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	var def *models.LogisticsVariant
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		def, err = e.store.GetDefaultVariant(ctx, productID)
		return err
	})

	switch {
	case err == nil:
		updates := make(map[string]interface{}, len(fields))
		for col, val := range fields {
			updates[col] = val
		}
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.UpdateVariantFields(ctx, def.ID, updates)
		})
		if err != nil {
			return &SyncError{Entity: "logistics", Err: err}
		}
		return nil

	case errors.Is(err, ErrNotFound):
		v := &models.LogisticsVariant{
			ID:          uuid.New(),
			ProductID:   productID,
			VariantName: "Standard",
			IsDefault:   true,
		}
		applyVariantFields(v, fields)
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.UpsertVariant(ctx, v)
		})
		if err != nil {
			return &SyncError{Entity: "logistics", Err: err}
		}
		return nil

	default:
		return &SyncError{Entity: "logistics", Err: err}
	}
}

// ReplaceAggregate overwrites one per-product aggregate row wholesale,
// upserting keyed on product_id.
func (e *Engine) ReplaceAggregate(ctx context.Context, productID uuid.UUID, kind AggregateKind, payload interface{}) error {
	var err error
	switch kind {
	case AggregateSpecifications:
		specs, ok := payload.(models.SpecList)
		if !ok {
			return &SyncError{Entity: string(kind), Err: fmt.Errorf("payload is not a spec list")}
		}
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.ReplaceSpecifications(ctx, productID, specs)
		})
	case AggregateFeatures:
		list, ok := payload.(models.StringList)
		if !ok {
			return &SyncError{Entity: string(kind), Err: fmt.Errorf("payload is not a string list")}
		}
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.ReplaceFeatures(ctx, productID, list)
		})
	case AggregateTags:
		list, ok := payload.(models.StringList)
		if !ok {
			return &SyncError{Entity: string(kind), Err: fmt.Errorf("payload is not a string list")}
		}
		err = e.call(ctx, func(ctx context.Context) error {
			return e.store.ReplaceTags(ctx, productID, list)
		})
	default:
		return &SyncError{Entity: string(kind), Err: fmt.Errorf("unknown aggregate kind")}
	}

	if err != nil {
		return &SyncError{Entity: string(kind), Err: err}
	}
	return nil
}

// SubError is a non-fatal sub-entity failure inside a row sync.
type SubError struct {
	Entity string
	Err    error
}

// RowOutcome reports the best-effort result of syncing one change set.
// ProductErr set means nothing else was attempted; SubErrors list dependent
// collections that failed after the product portion succeeded.
type RowOutcome struct {
	ProductID  uuid.UUID
	Created    bool
	ProductErr error
	SubErrors  []SubError
}

// Succeeded reports whether the product portion of the row was applied.
func (o *RowOutcome) Succeeded() bool {
	return o.ProductErr == nil
}

// SyncRow applies a full change set to the store: product first (fatal for
// the row on failure), then logistics, specifications, features and tags
// independently. No rollback: sub-entity failures leave earlier writes in
// place and are reported in the outcome.
func (e *Engine) SyncRow(ctx context.Context, cs resolver.ChangeSet, itemNo string) RowOutcome {
	outcome := RowOutcome{}

	productID, created, err := e.UpsertProduct(ctx, cs, itemNo)
	if err != nil {
		outcome.ProductErr = err
		return outcome
	}
	outcome.ProductID = productID
	outcome.Created = created

	if err := e.ApplyLogisticsFields(ctx, productID, cs.Logistics); err != nil {
		outcome.SubErrors = append(outcome.SubErrors, SubError{Entity: "logistics", Err: err})
	}

	if len(cs.SpecsAdditions) > 0 {
		if err := e.ReplaceAggregate(ctx, productID, AggregateSpecifications, models.SpecList(cs.SpecsAdditions)); err != nil {
			outcome.SubErrors = append(outcome.SubErrors, SubError{Entity: "specifications", Err: err})
		}
	}

	if len(cs.FeaturesAdditions) > 0 {
		if err := e.ReplaceAggregate(ctx, productID, AggregateFeatures, models.StringList(cs.FeaturesAdditions)); err != nil {
			outcome.SubErrors = append(outcome.SubErrors, SubError{Entity: "features", Err: err})
		}
	}

	if len(cs.TagsAdditions) > 0 {
		if err := e.ReplaceAggregate(ctx, productID, AggregateTags, models.StringList(cs.TagsAdditions)); err != nil {
			outcome.SubErrors = append(outcome.SubErrors, SubError{Entity: "tags", Err: err})
		}
	}

	if e.logger != nil && len(outcome.SubErrors) > 0 {
		for _, sub := range outcome.SubErrors {
			e.logger.WithFields(logrus.Fields{
				"product_id": productID,
				"item_no":    itemNo,
				"entity":     sub.Entity,
			}).Warn(sub.Err.Error())
		}
	}

	return outcome
}

// productUpdates converts resolved product fields into a column patch,
// dropping the immutable natural key.
func productUpdates(fields map[string]string) map[string]interface{} {
	updates := make(map[string]interface{}, len(fields))
	for col, val := range fields {
		if col == models.NaturalKeyField {
			continue
		}
		updates[col] = val
	}
	return updates
}

// newProductRecord builds a fresh product row from resolved fields.
func newProductRecord(fields map[string]string, itemNo string) *models.ProductRecord {
	record := &models.ProductRecord{
		ID:     uuid.New(),
		ItemNo: itemNo,
		Active: true,
	}
	for col, val := range fields {
		val := val
		switch col {
		case "name":
			record.Name = val
		case "ean":
			record.EAN = &val
		case "brand":
			record.Brand = &val
		case "description":
			record.Description = &val
		case "primary_cat":
			record.PrimaryCat = &val
		case "secondary_cat":
			record.SecondaryCat = &val
		}
	}
	return record
}

func payloadToVariant(p models.LogisticsVariantPayload) *models.LogisticsVariant {
	v := &models.LogisticsVariant{
		VariantName:    p.VariantName,
		NetLengthMM:    p.NetLengthMM,
		NetWidthMM:     p.NetWidthMM,
		NetHeightMM:    p.NetHeightMM,
		NetWeightKG:    p.NetWeightKG,
		GrossLengthMM:  p.GrossLengthMM,
		GrossWidthMM:   p.GrossWidthMM,
		GrossHeightMM:  p.GrossHeightMM,
		GrossWeightKG:  p.GrossWeightKG,
		CartonLengthMM: p.CartonLengthMM,
		CartonWidthMM:  p.CartonWidthMM,
		CartonHeightMM: p.CartonHeightMM,
		CartonWeightKG: p.CartonWeightKG,
		PalletQuantity: p.PalletQuantity,
	}
	if p.ID != nil {
		v.ID = *p.ID
	}
	return v
}

// applyVariantFields sets resolved logistics columns on a variant struct.
func applyVariantFields(v *models.LogisticsVariant, fields map[string]string) {
	for col, val := range fields {
		val := val
		switch col {
		case "variant_name":
			v.VariantName = val
		case "net_length_mm":
			v.NetLengthMM = &val
		case "net_width_mm":
			v.NetWidthMM = &val
		case "net_height_mm":
			v.NetHeightMM = &val
		case "net_weight_kg":
			v.NetWeightKG = &val
		case "gross_length_mm":
			v.GrossLengthMM = &val
		case "gross_width_mm":
			v.GrossWidthMM = &val
		case "gross_height_mm":
			v.GrossHeightMM = &val
		case "gross_weight_kg":
			v.GrossWeightKG = &val
		case "carton_length_mm":
			v.CartonLengthMM = &val
		case "carton_width_mm":
			v.CartonWidthMM = &val
		case "carton_height_mm":
			v.CartonHeightMM = &val
		case "carton_weight_kg":
			v.CartonWeightKG = &val
		case "pallet_quantity":
			v.PalletQuantity = &val
		}
	}
}
