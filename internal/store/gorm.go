package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hearth/pkg/exception"
)

const defaultQueryTimeout = 5 * time.Second

// GormStore persists messages through gorm.
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

// NewGormStore migrates the messages table and returns a store on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, exception.ErrNilDatabase
	}
	if err := db.AutoMigrate(&Message{}); err != nil {
		return nil, errors.Wrap(err, "auto migrate messages")
	}
	return &GormStore{
		db:      db,
		timeout: defaultQueryTimeout,
		now:     time.Now,
	}, nil
}

func (s *GormStore) session() (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	return s.db.WithContext(ctx), cancel
}

func (s *GormStore) OnMessageCreate(payload json.RawMessage) error {
	msg, err := decodeMessage(payload, s.now())
	if err != nil {
		return err
	}
	db, cancel := s.session()
	defer cancel()

	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&msg).Error; err != nil {
		return errors.Wrap(err, "insert message").With("id", msg.ID)
	}
	return nil
}

func (s *GormStore) OnMessageUpdate(payload json.RawMessage) error {
	e, err := decodeEdit(payload, s.now())
	if err != nil {
		return err
	}
	db, cancel := s.session()
	defer cancel()

	updates := map[string]any{"edited_at": e.editedAt}
	if e.content != nil {
		updates["content"] = *e.content
	}
	result := db.Model(&Message{}).Where("id = ?", e.id).Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, "update message").With("id", e.id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(exception.ErrUnknownMessage, "update").With("id", e.id)
	}
	return nil
}

func (s *GormStore) OnMessageDelete(payload json.RawMessage) error {
	id, err := decodeID(payload)
	if err != nil {
		return err
	}
	db, cancel := s.session()
	defer cancel()

	result := db.Where("id = ?", id).Delete(&Message{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete message").With("id", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(exception.ErrUnknownMessage, "delete").With("id", id)
	}
	return nil
}

// Messages returns the channel's messages ordered by creation time.
func (s *GormStore) Messages(channelID string) ([]Message, error) {
	db, cancel := s.session()
	defer cancel()

	var out []Message
	if err := db.Where("channel_id = ?", channelID).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "query messages").With("channelID", channelID)
	}
	return out, nil
}

func (s *GormStore) Get(id string) (Message, error) {
	db, cancel := s.session()
	defer cancel()

	var found []Message
	if err := db.Where("id = ?", id).Limit(1).Find(&found).Error; err != nil {
		return Message{}, errors.Wrap(err, "query message").With("id", id)
	}
	if len(found) == 0 {
		return Message{}, errors.Wrap(exception.ErrUnknownMessage, "get").With("id", id)
	}
	return found[0], nil
}
