package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fabline/fabline/internal/shared"
)

// Service issues and configures entity numbers.
type Service struct {
	repo      Repository
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time

	// prefixes holds the last prefix read from the store per entity.
	prefixes sync.Map
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		logger:    logger,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate returns the next number for entity.
func (s *Service) Generate(ctx context.Context, entity Entity) (string, error) {
	if !entity.IsValid() {
		return "", shared.Validationf("unknown sequence entity %q", entity)
	}
	counter, err := s.repo.Next(ctx, entity, DefaultSettings(entity))
	if err != nil {
		return "", err
	}
	s.remember(counter)
	return Format(counter, counter.Current, s.now().Year()), nil
}

// GenerateOrFallback never fails: when the counter store is unavailable it
// returns prefix-<unix millis>-<random hex>, using the last prefix this
// process saw for entity or the default one. Fallback numbers are unique
// with high probability only.
func (s *Service) GenerateOrFallback(ctx context.Context, entity Entity) string {
	number, err := s.Generate(ctx, entity)
	if err == nil {
		return number
	}
	fallback := Fallback(s.prefix(entity), s.now())
	s.logger.Warn("sequence generation failed, using fallback number",
		slog.String("entity", string(entity)),
		slog.String("number", fallback),
		slog.Any("error", err))
	return fallback
}

// Fallback builds a locally generated number with the given prefix.
func Fallback(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), strings.ToUpper(suffix))
}

func (s *Service) remember(c Counter) {
	if c.Prefix != "" {
		s.prefixes.Store(c.Entity, c.Prefix)
	}
}

func (s *Service) prefix(entity Entity) string {
	if v, ok := s.prefixes.Load(entity); ok {
		return v.(string)
	}
	return DefaultSettings(entity).Prefix
}

// Configure updates prefix, separator, year suffix and start number. The
// current value is only ever raised to startNumber-1.
func (s *Service) Configure(ctx context.Context, entity Entity, settings Settings) (Counter, error) {
	if !entity.IsValid() {
		return Counter{}, shared.Validationf("unknown sequence entity %q", entity)
	}
	settings.Prefix = strings.TrimSpace(settings.Prefix)
	if err := shared.Validate(s.validator, settings); err != nil {
		return Counter{}, err
	}
	counter, err := s.repo.Configure(ctx, entity, settings)
	if err != nil {
		return Counter{}, err
	}
	s.remember(counter)
	s.logger.Info("sequence configured",
		slog.String("entity", string(entity)),
		slog.String("prefix", counter.Prefix),
		slog.Int64("current", counter.Current))
	return counter, nil
}

// List returns every entity's counter, filling in defaults for counters that
// have not been used yet.
func (s *Service) List(ctx context.Context) ([]Counter, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byEntity := make(map[Entity]Counter, len(stored))
	for _, c := range stored {
		byEntity[c.Entity] = c
		s.remember(c)
	}
	out := make([]Counter, 0, len(Entities))
	for _, e := range Entities {
		if c, ok := byEntity[e]; ok {
			out = append(out, c)
			continue
		}
		d := DefaultSettings(e)
		out = append(out, Counter{Entity: e, Prefix: d.Prefix, Separator: d.Separator, YearSuffix: d.YearSuffix, StartNumber: d.StartNumber, Current: d.StartNumber - 1})
	}
	return out, nil
}

// Preview formats the number the next Generate call would produce.
func (s *Service) Preview(ctx context.Context, entity Entity) (string, error) {
	if !entity.IsValid() {
		return "", shared.Validationf("unknown sequence entity %q", entity)
	}
	counter, err := s.repo.Get(ctx, entity)
	if errors.Is(err, shared.ErrNotFound) {
		d := DefaultSettings(entity)
		counter = Counter{Entity: entity, Prefix: d.Prefix, Separator: d.Separator, YearSuffix: d.YearSuffix, Current: d.StartNumber - 1}
	} else if err != nil {
		return "", err
	}
	return Format(counter, counter.Current+1, s.now().Year()), nil
}
