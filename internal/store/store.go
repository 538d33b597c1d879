package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a slot does not exist.
var ErrNotFound = errors.New("save slot not found")

// Record is everything a save slot holds.
type Record struct {
	Slot     string
	Label    string
	Snapshot combat.Snapshot
	Space    combat.Space
	Upgrades combat.Upgrades
	SavedAt  time.Time
}

// Summary is the listing view of a save slot.
type Summary struct {
	Slot       string
	Label      string
	Tick       int
	Honor      int64
	BattleName string
	Active     bool
	SavedAt    time.Time
}

// Store persists save slots through gorm.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open connects to the given driver ("sqlite" or "postgres") and migrates
// the schema. For sqlite the dsn is a file path.
func Open(driver, dsn string, log zerolog.Logger) (*Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite db %q: %w", dsn, err)
		}
		if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		// sqlite allows one writer; keep a single connection.
		sqlDB.SetMaxOpenConns(1)
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info().Str("driver", driver).Msg("Save store ready")
	return &Store{db: db, logger: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// Save writes rec into its slot, creating the slot when rec.Slot is empty or
// unknown. It returns the slot id.
func (s *Store) Save(ctx context.Context, rec Record) (string, error) {
	if rec.Slot == "" {
		rec.Slot = uuid.NewString()
	} else if _, err := uuid.Parse(rec.Slot); err != nil {
		return "", fmt.Errorf("invalid slot %q: %w", rec.Slot, err)
	}

	row, err := toRow(rec)
	if err != nil {
		return "", err
	}

	// Upsert keyed on slot.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", rec.Slot, err)
	}

	s.logger.Debug().Str("slot", rec.Slot).Int("tick", row.Tick).Msg("Saved game")
	return rec.Slot, nil
}

// Load reads a slot back.
func (s *Store) Load(ctx context.Context, slot string) (Record, error) {
	var row SaveGame
	err := s.db.WithContext(ctx).Where("slot = ?", slot).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load save %s: %w", slot, err)
	}
	return fromRow(row)
}

// List returns every slot, most recently saved first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var rows []SaveGame
	err := s.db.WithContext(ctx).
		Select("slot", "label", "tick", "honor", "battle_name", "active", "updated_at").
		Order("updated_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, Summary{
			Slot:       r.Slot,
			Label:      r.Label,
			Tick:       r.Tick,
			Honor:      r.Honor,
			BattleName: r.BattleName,
			Active:     r.Active,
			SavedAt:    r.UpdatedAt,
		})
	}
	return out, nil
}

// Delete removes a slot and its battle records.
func (s *Store) Delete(ctx context.Context, slot string) error {
	db := s.db.WithContext(ctx)
	var row SaveGame
	err := db.Where("slot = ?", slot).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	if err != nil {
		return fmt.Errorf("failed to look up save %s: %w", slot, err)
	}
	if err := db.Unscoped().Where("save_game_id = ?", row.ID).Delete(&BattleRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete battles of %s: %w", slot, err)
	}
	if err := db.Unscoped().Delete(&row).Error; err != nil {
		return fmt.Errorf("failed to delete save %s: %w", slot, err)
	}
	return nil
}

// AppendBattles stores finished battles under a slot.
func (s *Store) AppendBattles(ctx context.Context, slot string, results []combat.BattleResult) error {
	if len(results) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)
	var row SaveGame
	err := db.Where("slot = ?", slot).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	if err != nil {
		return fmt.Errorf("failed to look up save %s: %w", slot, err)
	}

	records := make([]BattleRecord, 0, len(results))
	for _, r := range results {
		records = append(records, BattleRecord{
			SaveGameID:     row.ID,
			Name:           r.Name,
			Outcome:        r.Outcome.String(),
			Reason:         r.Reason.String(),
			Description:    r.Description,
			Ticks:          r.Ticks,
			LeftCap:        r.LeftCap,
			RightCap:       r.RightCap,
			LeftLost:       r.LeftLost,
			RightLost:      r.RightLost,
			ProbesLost:     r.ProbesLost,
			DriftersKilled: r.DriftersKilled,
			HonorDelta:     r.HonorDelta,
		})
	}
	if err := db.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to store battles for %s: %w", slot, err)
	}
	return nil
}

// Battles returns the stored battles of a slot, oldest first.
func (s *Store) Battles(ctx context.Context, slot string) ([]BattleRecord, error) {
	var row SaveGame
	err := s.db.WithContext(ctx).
		Preload("Battles", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Where("slot = ?", slot).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load battles of %s: %w", slot, err)
	}
	return row.Battles, nil
}

func toRow(rec Record) (SaveGame, error) {
	snap := rec.Snapshot
	units, err := json.Marshal(snap.Units)
	if err != nil {
		return SaveGame{}, fmt.Errorf("failed to encode units: %w", err)
	}
	occ, err := json.Marshal(snap.Occurrences)
	if err != nil {
		return SaveGame{}, fmt.Errorf("failed to encode name counters: %w", err)
	}
	// Units and counters live in their own columns.
	snap.Units = nil
	snap.Occurrences = nil
	rest, err := json.Marshal(snap)
	if err != nil {
		return SaveGame{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return SaveGame{
		Slot:             rec.Slot,
		Label:            rec.Label,
		Tick:             snap.Tick,
		Honor:            snap.Ledger.Honor,
		BattleName:       snap.Current,
		Memorial:         snap.Memorial,
		Active:           snap.Battle != nil,
		RNGKind:          snap.RNGKind.String(),
		ProbeCount:       rec.Space.ProbeCount,
		DrifterCount:     rec.Space.DrifterCount,
		ProbesLostCombat: rec.Space.ProbesLostCombat,
		DriftersKilled:   rec.Space.DriftersKilled,
		ProbeSpeed:       rec.Space.ProbeSpeed,
		SpeedBonus:       rec.Space.SpeedBonus,
		NamedBattles:     rec.Upgrades.NamedBattles,
		Glory:            rec.Upgrades.Glory,
		Units:            datatypes.JSON(units),
		Occurrences:      datatypes.JSON(occ),
		Snapshot:         datatypes.JSON(rest),
	}, nil
}

func fromRow(row SaveGame) (Record, error) {
	var snap combat.Snapshot
	if err := json.Unmarshal(row.Snapshot, &snap); err != nil {
		return Record{}, fmt.Errorf("failed to decode snapshot of %s: %w", row.Slot, err)
	}
	if err := json.Unmarshal(row.Units, &snap.Units); err != nil {
		return Record{}, fmt.Errorf("failed to decode units of %s: %w", row.Slot, err)
	}
	if err := json.Unmarshal(row.Occurrences, &snap.Occurrences); err != nil {
		return Record{}, fmt.Errorf("failed to decode name counters of %s: %w", row.Slot, err)
	}
	return Record{
		Slot:     row.Slot,
		Label:    row.Label,
		Snapshot: snap,
		Space: combat.Space{
			ProbeCount:       row.ProbeCount,
			DrifterCount:     row.DrifterCount,
			ProbesLostCombat: row.ProbesLostCombat,
			DriftersKilled:   row.DriftersKilled,
			ProbeSpeed:       row.ProbeSpeed,
			SpeedBonus:       row.SpeedBonus,
		},
		Upgrades: combat.Upgrades{
			NamedBattles: row.NamedBattles,
			Glory:        row.Glory,
		},
		SavedAt: row.UpdatedAt,
	}, nil
}
