// Package bulkedit coordinates the spreadsheet-style editing surface: a
// working set of records snapshotted into a flat buffer, edited in place,
// then saved through the sync engine using the same template mapping the
// import path uses.
package bulkedit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"pim-service/internal/models"
	"pim-service/internal/resolver"
	"pim-service/internal/syncengine"
)

// State of the session. EditingRow and Editing are mutually exclusive.
type State string

const (
	StateIdle       State = "idle"
	StateEditing    State = "editing"
	StateEditingRow State = "editing_row"
	StateSaving     State = "saving"
)

var (
	ErrBulkActive    = errors.New("bulk edit is active; row edit is disabled")
	ErrRowEditActive = errors.New("a row edit is active; bulk edit is disabled")
	ErrNotEditing    = errors.New("session is not in an editing state")
	ErrUnknownRecord = errors.New("record is not part of the editing buffer")
)

// SaveResult collects per-record outcomes of a save. Failures never block
// other records.
type SaveResult struct {
	Succeeded []string
	Failed    []models.BulkSaveFailure
}

// Session owns one editing buffer at a time. It is used by a single client
// session; the mutex only guards against overlapping HTTP calls.
type Session struct {
	mu     sync.Mutex
	state  State
	buffer map[string]map[string]string // record id -> field -> value
	itemNo map[string]string            // record id -> natural key
	engine *syncengine.Engine
	logger *logrus.Logger
}

func NewSession(engine *syncengine.Engine, logger *logrus.Logger) *Session {
	return &Session{
		state:  StateIdle,
		engine: engine,
		logger: logger,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnterBulkEdit snapshots every record into the editing buffer, flattening
// the first logistics variant into the same field namespace as the product
// columns. Refused while a row edit is active.
func (s *Session) EnterBulkEdit(records []models.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEditingRow {
		return ErrRowEditActive
	}

	s.buffer = make(map[string]map[string]string, len(records))
	s.itemNo = make(map[string]string, len(records))
	for i := range records {
		r := &records[i]
		s.buffer[r.ID.String()] = snapshotRecord(r)
		s.itemNo[r.ID.String()] = r.ItemNo
	}
	s.state = StateEditing
	return nil
}

// EnterRowEdit snapshots a single record. Refused while bulk mode is active.
func (s *Session) EnterRowEdit(record *models.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEditing {
		return ErrBulkActive
	}

	s.buffer = map[string]map[string]string{
		record.ID.String(): snapshotRecord(record),
	}
	s.itemNo = map[string]string{record.ID.String(): record.ItemNo}
	s.state = StateEditingRow
	return nil
}

// SetField stages one edit in the buffer. The natural key is read-only.
func (s *Session) SetField(recordID, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing && s.state != StateEditingRow {
		return ErrNotEditing
	}
	fields, ok := s.buffer[recordID]
	if !ok {
		return ErrUnknownRecord
	}
	if field == models.NaturalKeyField {
		return fmt.Errorf("field %s is read-only", models.NaturalKeyField)
	}
	fields[field] = value
	return nil
}

// Field reads one buffered value.
func (s *Session) Field(recordID, field string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.buffer[recordID]
	if !ok {
		return "", false
	}
	v, ok := fields[field]
	return v, ok
}

// Cancel discards the buffer with no persistence side effects.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = nil
	s.itemNo = nil
	s.state = StateIdle
}

// SaveAll writes every buffered record through the template mapping, one
// engine call per record. Records are independent: saves are dispatched
// concurrently and individual failures are collected, not propagated.
// The session returns to Idle afterwards.
func (s *Session) SaveAll(ctx context.Context, template *models.ImportTemplate) (*SaveResult, error) {
	s.mu.Lock()
	if s.state != StateEditing {
		s.mu.Unlock()
		return nil, ErrNotEditing
	}
	s.state = StateSaving
	buffer := s.buffer
	itemNos := s.itemNo
	s.mu.Unlock()

	result := &SaveResult{}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for id, fields := range buffer {
		wg.Add(1)
		go func(id string, fields map[string]string) {
			defer wg.Done()
			err := s.saveRecord(ctx, id, itemNos[id], fields, template)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, models.BulkSaveFailure{ID: id, Error: err.Error()})
			} else {
				result.Succeeded = append(result.Succeeded, id)
			}
		}(id, fields)
	}
	wg.Wait()

	s.mu.Lock()
	s.buffer = nil
	s.itemNo = nil
	s.state = StateIdle
	s.mu.Unlock()

	return result, nil
}

// SaveRow writes one buffered record, identical routing to SaveAll.
func (s *Session) SaveRow(ctx context.Context, recordID string, template *models.ImportTemplate) error {
	s.mu.Lock()
	if s.state != StateEditingRow && s.state != StateEditing {
		s.mu.Unlock()
		return ErrNotEditing
	}
	fields, ok := s.buffer[recordID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownRecord
	}
	itemNo := s.itemNo[recordID]
	s.mu.Unlock()

	if err := s.saveRecord(ctx, recordID, itemNo, fields, template); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateEditingRow {
		delete(s.buffer, recordID)
		if len(s.buffer) == 0 {
			s.buffer = nil
			s.itemNo = nil
			s.state = StateIdle
		}
	}
	s.mu.Unlock()
	return nil
}

// saveRecord routes buffered fields to product or logistics through the
// template's mapping, exactly like the import resolver: entries for
// specifications, features and tags are display-only here and never written.
func (s *Session) saveRecord(ctx context.Context, recordID, itemNo string, fields map[string]string, template *models.ImportTemplate) error {
	cs := resolver.ChangeSet{
		Product:   make(map[string]string),
		Logistics: make(map[string]string),
	}

	for field, value := range fields {
		if value == "" || field == models.NaturalKeyField {
			continue
		}
		entry, ok := entryForField(template.Mapping, field)
		if !ok {
			continue
		}
		switch entry.TargetEntity {
		case models.TargetProduct:
			cs.Product[field] = value
		case models.TargetLogistics:
			cs.Logistics[field] = value
		}
	}

	if len(cs.Product) == 0 && len(cs.Logistics) == 0 {
		return nil
	}

	outcome := s.engine.SyncRow(ctx, cs, itemNo)
	if !outcome.Succeeded() {
		return outcome.ProductErr
	}
	if len(outcome.SubErrors) > 0 {
		sub := outcome.SubErrors[0]
		return fmt.Errorf("%s: %w", sub.Entity, sub.Err)
	}

	s.logger.WithFields(logrus.Fields{
		"record_id": recordID,
		"item_no":   itemNo,
	}).Debug("record saved")
	return nil
}

// entryForField finds the mapping entry bound to a fixed target field.
func entryForField(entries []models.MappingEntry, field string) (models.MappingEntry, bool) {
	for _, e := range entries {
		if !e.IsDynamicKey && e.TargetField == field {
			return e, true
		}
	}
	return models.MappingEntry{}, false
}

// snapshotRecord flattens a record for the editing buffer: product columns
// plus the first logistics variant in one namespace.
func snapshotRecord(r *models.ProductRecord) map[string]string {
	fields := map[string]string{
		"item_no": r.ItemNo,
		"name":    r.Name,
	}
	setOpt := func(key string, val *string) {
		if val != nil {
			fields[key] = *val
		}
	}
	setOpt("ean", r.EAN)
	setOpt("brand", r.Brand)
	setOpt("description", r.Description)
	setOpt("primary_cat", r.PrimaryCat)
	setOpt("secondary_cat", r.SecondaryCat)

	if len(r.Logistics) > 0 {
		v := r.Logistics[0]
		fields["variant_name"] = v.VariantName
		setOpt("net_length_mm", v.NetLengthMM)
		setOpt("net_width_mm", v.NetWidthMM)
		setOpt("net_height_mm", v.NetHeightMM)
		setOpt("net_weight_kg", v.NetWeightKG)
		setOpt("gross_length_mm", v.GrossLengthMM)
		setOpt("gross_width_mm", v.GrossWidthMM)
		setOpt("gross_height_mm", v.GrossHeightMM)
		setOpt("gross_weight_kg", v.GrossWeightKG)
		setOpt("carton_length_mm", v.CartonLengthMM)
		setOpt("carton_width_mm", v.CartonWidthMM)
		setOpt("carton_height_mm", v.CartonHeightMM)
		setOpt("carton_weight_kg", v.CartonWeightKG)
		setOpt("pallet_quantity", v.PalletQuantity)
	}

	return fields
}
