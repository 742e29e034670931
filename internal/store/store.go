package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/trivia-backend/internal/accounts"
	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

var ErrUnknownDriver = errors.New("unknown database driver")

var _ accounts.Store = (*Store)(nil)

type Player struct {
	ID          int    `gorm:"primaryKey;autoIncrement:false"`
	Username    string `gorm:"uniqueIndex;not null"`
	Password    string `gorm:"not null"`
	Score       int    `gorm:"not null"`
	Role        string `gorm:"not null"`
	GamesPlayed int    `gorm:"not null"`
	WinStreak   int    `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists account records between server runs. Session bindings are never
// stored.
type Store struct {
	db *gorm.DB
}

func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	st := &Store{db: db}
	if err := db.AutoMigrate(&Player{}); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrate: %w", err), st.Close())
	}
	return st, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) LoadAccounts(ctx context.Context) ([]accounts.Account, error) {
	var rows []Player
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	out := make([]accounts.Account, len(rows))
	for i, p := range rows {
		role, err := types.ParseRole(p.Role)
		if err != nil {
			role = types.RolePlayer
		}
		out[i] = accounts.Account{
			ID:          p.ID,
			Username:    p.Username,
			Password:    p.Password,
			Score:       p.Score,
			Role:        role,
			GamesPlayed: p.GamesPlayed,
			WinStreak:   p.WinStreak,
		}
	}
	return out, nil
}

// SaveAccounts upserts every account by id in one transaction.
func (s *Store) SaveAccounts(ctx context.Context, accts []accounts.Account) error {
	if len(accts) == 0 {
		return nil
	}
	rows := make([]Player, len(accts))
	for i, a := range accts {
		rows[i] = Player{
			ID:          a.ID,
			Username:    a.Username,
			Password:    a.Password,
			Score:       a.Score,
			Role:        string(a.Role),
			GamesPlayed: a.GamesPlayed,
			WinStreak:   a.WinStreak,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "password", "score", "role", "games_played", "win_streak", "updated_at",
			}),
		}).CreateInBatches(&rows, 200).Error
	})
	if err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}
