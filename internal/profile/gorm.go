package profile

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

type profileRecord struct {
	ID      string        `gorm:"primaryKey;size:64"`
	Name    string        `gorm:"index;not null"`
	Type    string        `gorm:"size:16"`
	Aliases []aliasRecord `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
	Facts   []factRecord  `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
}

func (profileRecord) TableName() string { return "profiles" }

type aliasRecord struct {
	ID        uint   `gorm:"primaryKey"`
	ProfileID string `gorm:"index;size:64"`
	Alias     string `gorm:"not null"`
}

func (aliasRecord) TableName() string { return "profile_aliases" }

type factRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	ProfileID  string `gorm:"index;size:64"`
	Statement  string `gorm:"not null"`
	Confidence float64
	SourceType string `gorm:"size:32"`
	Verified   bool
	Tags       string // comma separated
}

func (factRecord) TableName() string { return "profile_facts" }

// GormStore keeps profiles in a SQL database
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore opens a sqlite or postgres database and migrates the schema
func OpenGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown profile database driver: %s (supported: sqlite, postgres)", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open profile database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an open database and migrates the schema
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&profileRecord{}, &aliasRecord{}, &factRecord{}); err != nil {
		return nil, fmt.Errorf("migrate profile schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Save inserts or replaces a profile with its aliases and facts
func (s *GormStore) Save(ctx context.Context, p model.Profile) error {
	rec := profileRecord{ID: p.ID, Name: p.Name, Type: string(p.Type)}
	for _, a := range p.Aliases {
		rec.Aliases = append(rec.Aliases, aliasRecord{ProfileID: p.ID, Alias: a})
	}
	for _, f := range p.Facts {
		rec.Facts = append(rec.Facts, factRecord{
			ID:         f.ID,
			ProfileID:  p.ID,
			Statement:  f.Statement,
			Confidence: f.Confidence,
			SourceType: f.SourceType,
			Verified:   f.Verified,
			Tags:       strings.Join(f.Tags, ","),
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", p.ID).Delete(&aliasRecord{}).Error; err != nil {
			return fmt.Errorf("delete aliases: %w", err)
		}
		if err := tx.Where("profile_id = ?", p.ID).Delete(&factRecord{}).Error; err != nil {
			return fmt.Errorf("delete facts: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		return nil
	})
}

// FindFacts loads profiles and matches names/aliases with the same rules as MemoryStore
// TODO: push exact and containment matching into SQL once profile tables outgrow memory
func (s *GormStore) FindFacts(ctx context.Context, nameOrAlias string) ([]model.ProfileFact, error) {
	var records []profileRecord
	if err := s.db.WithContext(ctx).Preload("Aliases", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Preload("Facts", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	var facts []model.ProfileFact
	for _, rec := range records {
		p := rec.toModel()
		if score := matchProfile(p, nameOrAlias); score > 0 {
			facts = append(facts, factsFor(p, score)...)
		}
	}
	return facts, nil
}

func (r profileRecord) toModel() model.Profile {
	p := model.Profile{ID: r.ID, Name: r.Name, Type: model.ProfileType(r.Type)}
	for _, a := range r.Aliases {
		p.Aliases = append(p.Aliases, a.Alias)
	}
	for _, f := range r.Facts {
		var tags []string
		if f.Tags != "" {
			tags = strings.Split(f.Tags, ",")
		}
		p.Facts = append(p.Facts, model.ProfileFact{
			ID:         f.ID,
			Statement:  f.Statement,
			Confidence: f.Confidence,
			SourceType: f.SourceType,
			Verified:   f.Verified,
			Tags:       tags,
		})
	}
	return p
}
