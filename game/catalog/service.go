package catalog

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/model"
)

var (
	ErrNotFound      = errors.New("character not found")
	ErrNoneAvailable = errors.New("no characters available")
	ErrDuplicateName = errors.New("character name already taken")
)

// Filter narrows a random draw. Empty fields match everything.
type Filter struct {
	Gender   string
	Category string
}

// ValueBracket maps a rank ceiling to a value range. Brackets are checked
// in order, so they must be sorted by MaxRank ascending.
type ValueBracket struct {
	MaxRank int
	Min     int64
	Max     int64
}

// DefaultBrackets is the stock rank-to-value table.
var DefaultBrackets = []ValueBracket{
	{MaxRank: 1, Min: 5000, Max: 10000},
	{MaxRank: 5, Min: 2000, Max: 5000},
	{MaxRank: 10, Min: 1000, Max: 2500},
	{MaxRank: 25, Min: 500, Max: 1200},
	{MaxRank: 50, Min: 250, Max: 600},
	{MaxRank: 100, Min: 100, Max: 300},
	{MaxRank: 0, Min: 50, Max: 150}, // MaxRank 0 = everything else
}

// Service is the character catalog: random draws for rolling, name search
// and admin ingestion.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	brackets []ValueBracket

	rngMu sync.Mutex
	rng   *rand.Rand // injectable for testing
}

// NewService creates a new catalog Service. A nil rng gets a time-seeded one;
// nil brackets fall back to DefaultBrackets.
func NewService(db *gorm.DB, brackets []ValueBracket, rng *rand.Rand, logger *zap.Logger) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if brackets == nil {
		brackets = DefaultBrackets
	}
	return &Service{db: db, logger: logger, brackets: brackets, rng: rng}
}

func (svc *Service) intn(n int) int {
	svc.rngMu.Lock()
	defer svc.rngMu.Unlock()
	return svc.rng.Intn(n)
}

func (svc *Service) int63n(n int64) int64 {
	svc.rngMu.Lock()
	defer svc.rngMu.Unlock()
	return svc.rng.Int63n(n)
}

// DrawRandom picks a uniformly random character that matches the filter and
// is not in anyone's collection. Returns ErrNoneAvailable when the pool is
// empty.
func (svc *Service) DrawRandom(ctx context.Context, f Filter) (*model.Character, error) {
	q := svc.db.WithContext(ctx).Model(&model.Character{}).
		Where("NOT EXISTS (SELECT 1 FROM collection_items WHERE collection_items.character_id = characters.id)")
	if f.Gender != "" {
		q = q.Where("gender = ?", f.Gender)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoneAvailable
	}

	var ch model.Character
	if err := q.Order("characters.rank ASC").Offset(svc.intn(int(count))).First(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// FindByName returns the best-ranked character whose name contains the
// fragment, case-insensitively.
func (svc *Service) FindByName(ctx context.Context, fragment string) (*model.Character, error) {
	var ch model.Character
	err := svc.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(fragment)+"%").
		Order("characters.rank ASC").
		First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// List returns one page of the catalog ordered by rank, plus the total count.
// Page numbers start at 1.
func (svc *Service) List(ctx context.Context, page, perPage int) ([]model.Character, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := svc.db.WithContext(ctx).Model(&model.Character{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var chars []model.Character
	err := svc.db.WithContext(ctx).
		Order("characters.rank ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&chars).Error
	if err != nil {
		return nil, 0, err
	}
	return chars, total, nil
}

// Add ingests a new character, drawing its value from the rank bracket
// table. Rank uniqueness is enforced by the schema.
func (svc *Service) Add(ctx context.Context, name, series, category, gender string, rank int) (*model.Character, error) {
	var existing model.Character
	err := svc.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateName
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ch := model.Character{
		Name:     name,
		Series:   series,
		Category: category,
		Gender:   gender,
		Rank:     rank,
		Value:    svc.valueForRank(rank),
	}
	if err := svc.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return nil, err
	}
	svc.logger.Info("character added",
		zap.String("name", name),
		zap.Int("rank", rank),
		zap.Int64("value", ch.Value))
	return &ch, nil
}

// Rename changes a character's name, found by fragment. The new name must
// not collide with an existing one.
func (svc *Service) Rename(ctx context.Context, fragment, newName string) (*model.Character, error) {
	ch, err := svc.FindByName(ctx, fragment)
	if err != nil {
		return nil, err
	}

	var clash model.Character
	err = svc.db.WithContext(ctx).
		Where("LOWER(name) = ? AND id != ?", strings.ToLower(newName), ch.ID).
		First(&clash).Error
	if err == nil {
		return nil, ErrDuplicateName
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := svc.db.WithContext(ctx).Model(ch).Update("name", newName).Error; err != nil {
		return nil, err
	}
	ch.Name = newName
	return ch, nil
}

func (svc *Service) valueForRank(rank int) int64 {
	for _, b := range svc.brackets {
		if b.MaxRank == 0 || rank <= b.MaxRank {
			return b.Min + svc.int63n(b.Max-b.Min+1)
		}
	}
	return 100
}
