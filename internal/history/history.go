package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/word-guess-backend/internal/engine"
)

var ErrNoDatabase = errors.New("history: no database configured")

const MaxRecent = 100

// GameResult is one finished game.
type GameResult struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	LobbyCode  string         `gorm:"size:6;index;not null" json:"lobbyCode"`
	Rounds     int            `gorm:"not null" json:"rounds"`
	WinnerID   string         `gorm:"size:64" json:"winnerId"`
	WinnerName string         `gorm:"size:64" json:"winnerName"`
	FinishedAt time.Time      `gorm:"index;not null" json:"finishedAt"`
	Players    []PlayerResult `gorm:"constraint:OnDelete:CASCADE" json:"players"`
}

type PlayerResult struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	GameResultID uint   `gorm:"index;not null" json:"-"`
	PlayerID     string `gorm:"size:64;not null" json:"playerId"`
	Name         string `gorm:"size:64;not null" json:"name"`
	Score        int    `gorm:"not null" json:"score"`
	Rank         int    `gorm:"not null" json:"rank"`
}

// FromSnapshot flattens final standings into a row set.
func FromSnapshot(code string, snap engine.Snapshot, at time.Time) GameResult {
	res := GameResult{
		LobbyCode:  code,
		Rounds:     snap.MaxRounds, // a game only finishes after its last round
		FinishedAt: at.UTC(),
	}
	if w, ok := snap.Winner(); ok {
		res.WinnerID = w.ID
		res.WinnerName = w.Name
	}
	for i, p := range snap.Standings() {
		res.Players = append(res.Players, PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			Rank:     i + 1,
		})
	}
	return res
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, ErrNoDatabase
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&GameResult{}, &PlayerResult{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) RecordResults(ctx context.Context, code string, snap engine.Snapshot) error {
	res := FromSnapshot(code, snap, s.now())
	if err := s.db.WithContext(ctx).Create(&res).Error; err != nil {
		return fmt.Errorf("record results for %s: %w", code, err)
	}
	return nil
}

// Recent returns up to limit games, newest first, each with ranked players.
func (s *Store) Recent(ctx context.Context, limit int) ([]GameResult, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	var out []GameResult
	err := s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("rank") }).
		Order("finished_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
