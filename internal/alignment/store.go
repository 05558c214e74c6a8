package alignment

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cogentcore.org/core/math32"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/holoshare/relay/pkg/core"
)

// ErrNoCalibration reports a load from a slot that has never been
// saved. Callers fall through to live negotiation.
var ErrNoCalibration = errors.New("alignment: no stored calibration")

// CalibrationRecord is the persisted form of a reference pose. One row
// per named slot; saving again overwrites the row.
type CalibrationRecord struct {
	ID        uint   `gorm:"primarykey"`
	Slot      string `gorm:"uniqueIndex;size:64"`
	PosX      float32
	PosY      float32
	PosZ      float32
	RotX      float32
	RotY      float32
	RotZ      float32
	RotW      float32
	Scale     float32
	UpdatedAt time.Time
}

// Store persists reference poses across sessions so a returning user in
// the same physical space skips renegotiation.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewStore(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&CalibrationRecord{}); err != nil {
		return nil, fmt.Errorf("migrating calibration schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Save upserts the pose under the named slot. The stored components are
// written exactly as given; Load returns them bit-for-bit.
func (s *Store) Save(slot string, pose core.Pose) error {
	rec := CalibrationRecord{
		Slot:  slot,
		PosX:  pose.Position.X,
		PosY:  pose.Position.Y,
		PosZ:  pose.Position.Z,
		RotX:  pose.Rotation.X,
		RotY:  pose.Rotation.Y,
		RotZ:  pose.Rotation.Z,
		RotW:  pose.Rotation.W,
		Scale: pose.Scale,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"pos_x", "pos_y", "pos_z",
			"rot_x", "rot_y", "rot_z", "rot_w",
			"scale", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("saving calibration %q: %w", slot, err)
	}
	s.log.Info("calibration saved", "slot", slot)
	return nil
}

// Load reads the pose stored under the named slot.
func (s *Store) Load(slot string) (core.Pose, error) {
	var rec CalibrationRecord
	err := s.db.Where("slot = ?", slot).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Pose{}, fmt.Errorf("%w: slot %q", ErrNoCalibration, slot)
	}
	if err != nil {
		return core.Pose{}, fmt.Errorf("loading calibration %q: %w", slot, err)
	}
	return core.Pose{
		Position: math32.Vec3(rec.PosX, rec.PosY, rec.PosZ),
		Rotation: math32.NewQuat(rec.RotX, rec.RotY, rec.RotZ, rec.RotW),
		Scale:    rec.Scale,
	}, nil
}

// Delete removes a stored slot. Deleting a missing slot is a no-op.
func (s *Store) Delete(slot string) error {
	return s.db.Where("slot = ?", slot).Delete(&CalibrationRecord{}).Error
}
