package bootstrap

import (
	"errors"
	"log"
	"os"
	"time"
	"tix/src/db"
	"tix/src/models"
	"tix/src/types"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service applies a catalog snapshot exactly once per content version.
// Concurrent cold-start callers of Initialize share one in-flight apply
// through the singleflight group instead of racing duplicate writes.
type Service struct {
	db    *gorm.DB
	group singleflight.Group
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

var service *Service

// GetService returns the process-wide service. Every caller must share this
// instance; a fresh Service per caller would defeat the singleflight group
// and let concurrent re-runs race duplicate applies.
func GetService() *Service {
	if service != nil {
		return service
	}
	service = NewService(db.GetDb())
	return service
}

type Result struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
}

// Initialize loads the configured snapshot and applies it. Safe to call
// from every cold-start path; the request handlers must not accept traffic
// until it has returned without error.
func (s *Service) Initialize() (*Result, error) {
	v, err, _ := s.group.Do("initialize", func() (any, error) {
		snapshot, err := LoadSnapshot()
		if err != nil {
			return nil, err
		}
		return s.Apply(snapshot)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Apply upserts the snapshot's events and ticket types in one transaction
// and records a BootstrapVersion row. When the checksum matches the last
// successful apply it short-circuits without writing anything. SoldCount on
// existing ticket types is never touched.
func (s *Service) Apply(snapshot *Snapshot) (*Result, error) {
	checksum := CalculateChecksum(snapshot)

	var last models.BootstrapVersion
	err := s.db.
		Model(&models.BootstrapVersion{}).
		Where("status = ?", types.BOOTSTRAP_SUCCESS).
		Order("applied_at DESC").
		First(&last).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil && last.Checksum == checksum {
		log.Printf("[bootstrap] Snapshot %s already applied (checksum %.12s)\n", snapshot.Version, checksum)
		return &Result{
			Status:   types.BOOTSTRAP_RESULT_ALREADY_APPLIED,
			Version:  snapshot.Version,
			Checksum: checksum,
		}, nil
	}

	appliedBy, _ := os.Hostname()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(snapshot.Events) > 0 {
			events := make([]models.Event, 0, len(snapshot.Events))
			for _, ev := range snapshot.Events {
				events = append(events, models.Event{
					ID:       ev.ID,
					Title:    ev.Title,
					Location: ev.Location,
					StartsAt: ev.StartsAt,
					Status:   ev.Status,
				})
			}
			err := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"title", "location", "starts_at", "status", "updated_at"}),
				}).
				Create(&events).
				Error
			if err != nil {
				return err
			}
		}
		if len(snapshot.TicketTypes) > 0 {
			ticketTypes := make([]models.TicketType, 0, len(snapshot.TicketTypes))
			for _, tt := range snapshot.TicketTypes {
				ticketTypes = append(ticketTypes, models.TicketType{
					ID:          tt.ID,
					EventID:     tt.EventID,
					Name:        tt.Name,
					PriceCents:  tt.PriceCents,
					Status:      tt.Status,
					MaxQuantity: tt.MaxQuantity,
				})
			}
			// sold_count is deliberately absent from the update set.
			err := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"event_id", "name", "price_cents", "status", "max_quantity", "updated_at"}),
				}).
				Create(&ticketTypes).
				Error
			if err != nil {
				return err
			}
		}
		record := models.BootstrapVersion{
			Version:   snapshot.Version,
			Checksum:  checksum,
			Status:    string(types.BOOTSTRAP_SUCCESS),
			AppliedAt: time.Now(),
			AppliedBy: appliedBy,
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		log.Printf("[bootstrap] Error applying snapshot %s: %s\n", snapshot.Version, err.Error())
		s.recordFailure(snapshot.Version, checksum, appliedBy)
		return nil, err
	}

	log.Printf("[bootstrap] Applied snapshot %s (checksum %.12s)\n", snapshot.Version, checksum)
	return &Result{
		Status:   types.BOOTSTRAP_RESULT_SUCCESS,
		Version:  snapshot.Version,
		Checksum: checksum,
	}, nil
}

// recordFailure is best effort: the apply transaction already rolled back,
// and the caller treats the returned error as fatal either way.
func (s *Service) recordFailure(version, checksum, appliedBy string) {
	record := models.BootstrapVersion{
		Version:   version,
		Checksum:  checksum,
		Status:    string(types.BOOTSTRAP_FAILED),
		AppliedAt: time.Now(),
		AppliedBy: appliedBy,
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("[bootstrap] Error recording failed version %s: %s\n", version, err.Error())
	}
}
