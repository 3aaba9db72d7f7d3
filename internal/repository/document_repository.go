package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"daily-driver/internal/model"
)

// DocumentField is one top-level field of a user document.
type DocumentField struct {
	UserID    string `gorm:"primaryKey"`
	Name      string `gorm:"primaryKey"`
	Value     datatypes.JSON
	UpdatedAt time.Time
}

// GormDocumentStore keeps user documents in a SQL table, one row per field.
type GormDocumentStore struct {
	db *gorm.DB
}

func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{db: db}
}

func (r *GormDocumentStore) Get(ctx context.Context, userID string) (model.RawDocument, error) {
	var rows []DocumentField
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	doc := make(model.RawDocument, len(rows))
	for _, row := range rows {
		doc[row.Name] = json.RawMessage(row.Value)
	}
	return doc, nil
}

func (r *GormDocumentStore) SetMerge(ctx context.Context, userID string, fields Fields) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertFields(tx, userID, encoded)
	})
}

func (r *GormDocumentStore) UpdateFields(ctx context.Context, userID string, fields Fields) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireDocument(tx, userID); err != nil {
			return err
		}
		return upsertFields(tx, userID, encoded)
	})
}

func (r *GormDocumentStore) AppendUnique(ctx context.Context, userID, field string, value any) error {
	item, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", field, err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireDocument(tx, userID); err != nil {
			return err
		}

		var current DocumentField
		err := tx.Where("user_id = ? AND name = ?", userID, field).First(&current).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			current = DocumentField{UserID: userID, Name: field}
		default:
			return fmt.Errorf("find field %q: %w", field, err)
		}

		next, changed, err := appendUnique(current.Value, item)
		if err != nil {
			return fmt.Errorf("append to %q: %w", field, err)
		}
		if !changed {
			return nil
		}
		return upsertFields(tx, userID, map[string][]byte{field: next})
	})
}

func requireDocument(tx *gorm.DB, userID string) error {
	var count int64
	if err := tx.Model(&DocumentField{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("find document: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func upsertFields(tx *gorm.DB, userID string, encoded map[string][]byte) error {
	if len(encoded) == 0 {
		return nil
	}
	rows := make([]DocumentField, 0, len(encoded))
	for name, value := range encoded {
		rows = append(rows, DocumentField{UserID: userID, Name: name, Value: datatypes.JSON(value)})
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("write fields: %w", err)
	}
	return nil
}
