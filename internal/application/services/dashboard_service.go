package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

const (
	statsKeyPrefix    = "dashboard:stats:"
	defaultStatsDays  = 30
	minimumStatsTTL   = time.Minute
	snapshotTTLFactor = 3
)

// snapshot is a stats reading and when it was taken
type snapshot struct {
	Stats   *entities.AppointmentStats `json:"stats"`
	TakenAt time.Time                  `json:"takenAt"`
}

// DashboardService polls appointment statistics and fans snapshots out to
// open dashboards through the event bus.
type DashboardService struct {
	appointments providers.AppointmentProvider
	resolver     ClinicResolver
	events       providers.EventBus
	cache        providers.CacheProvider
	clinicIDs    []string
	days         int
	location     *time.Location
	now          func() time.Time

	mu       sync.RWMutex
	latest   map[string]snapshot
	interval time.Duration
}

// DashboardOption configures a DashboardService
type DashboardOption func(*DashboardService)

// WithDashboardCache shares snapshots between BFF instances
func WithDashboardCache(cache providers.CacheProvider) DashboardOption {
	return func(s *DashboardService) { s.cache = cache }
}

// WithDashboardClock overrides time.Now
func WithDashboardClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

// WithDashboardLocation sets the clinic time zone used for day bounds
func WithDashboardLocation(loc *time.Location) DashboardOption {
	return func(s *DashboardService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithStatsWindow sets how many days, today included, a snapshot covers
func WithStatsWindow(days int) DashboardOption {
	return func(s *DashboardService) {
		if days > 0 {
			s.days = days
		}
	}
}

// NewDashboardService creates a dashboard service polling clinicIDs, or the
// resolver's default clinic when the list is empty.
func NewDashboardService(
	appointments providers.AppointmentProvider,
	resolver ClinicResolver,
	events providers.EventBus,
	clinicIDs []string,
	opts ...DashboardOption,
) *DashboardService {
	s := &DashboardService{
		appointments: appointments,
		resolver:     resolver,
		events:       events,
		clinicIDs:    clinicIDs,
		days:         defaultStatsDays,
		location:     time.Local,
		now:          time.Now,
		latest:       make(map[string]snapshot),
		interval:     time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func statsKey(clinicID string) string {
	return statsKeyPrefix + clinicID
}

// Window returns the range a snapshot taken now covers
func (s *DashboardService) Window() (time.Time, time.Time) {
	today := s.now().In(s.location)
	from := timeutil.StartOfDay(today.AddDate(0, 0, -(s.days - 1)))
	return from, timeutil.EndOfDay(today)
}

func (s *DashboardService) targets(ctx context.Context) []string {
	if len(s.clinicIDs) > 0 {
		return s.clinicIDs
	}
	if s.resolver == nil {
		return []string{""}
	}
	id, err := s.resolver.ResolveClinicID(ctx, "")
	if err != nil {
		log.Warn().Err(err).Msg("dashboard clinic resolution failed")
	}
	return []string{id}
}

// Refresh fetches fresh statistics for a clinic and publishes them
func (s *DashboardService) Refresh(ctx context.Context, clinicID string) (*entities.AppointmentStats, error) {
	from, to := s.Window()
	stats, err := s.appointments.GetStats(ctx, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for clinic %q: %w", clinicID, err)
	}

	taken := snapshot{Stats: stats, TakenAt: s.now()}
	s.mu.Lock()
	s.latest[clinicID] = taken
	ttl := s.interval * snapshotTTLFactor
	s.mu.Unlock()

	if s.cache != nil {
		if data, err := json.Marshal(taken); err == nil {
			if ttl < minimumStatsTTL {
				ttl = minimumStatsTTL
			}
			if err := s.cache.Set(ctx, statsKey(clinicID), data, ttl); err != nil {
				log.Warn().Err(err).Str("clinic_id", clinicID).Msg("failed to cache stats snapshot")
			}
		}
	}

	if s.events != nil {
		event := entities.NewAppointmentEvent(clinicID, "", entities.AppointmentEventStatsSnapshot)
		event.Timestamp = s.now()
		event.Stats = stats
		if err := s.events.Publish(ctx, providers.GetClinicChannel(clinicID), event); err != nil {
			log.Warn().Err(err).Str("clinic_id", clinicID).Msg("failed to publish stats snapshot")
		}
	}
	return stats, nil
}

// RefreshAll refreshes every polled clinic. One clinic failing does not stop the others.
func (s *DashboardService) RefreshAll(ctx context.Context) error {
	var failed []string
	for _, id := range s.targets(ctx) {
		if _, err := s.Refresh(ctx, id); err != nil {
			log.Error().Err(err).Str("clinic_id", id).Msg("dashboard refresh failed")
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("dashboard refresh failed for %d clinic(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// fresh reports whether a snapshot is younger than snapshotTTLFactor polls
func (s *DashboardService) fresh(snap snapshot) bool {
	s.mu.RLock()
	maxAge := s.interval * snapshotTTLFactor
	s.mu.RUnlock()
	return snap.Stats != nil && s.now().Sub(snap.TakenAt) < maxAge
}

// Latest returns the most recent snapshot of a clinic, from memory or the
// shared cache. Snapshots older than snapshotTTLFactor polls are ignored.
func (s *DashboardService) Latest(ctx context.Context, clinicID string) (*entities.AppointmentStats, bool) {
	s.mu.RLock()
	snap, ok := s.latest[clinicID]
	s.mu.RUnlock()
	if ok && s.fresh(snap) {
		return snap.Stats, true
	}
	if s.cache == nil {
		return nil, false
	}
	data, found, err := s.cache.Get(ctx, statsKey(clinicID))
	if err != nil || !found {
		return nil, false
	}
	var cached snapshot
	if err := json.Unmarshal(data, &cached); err != nil || !s.fresh(cached) {
		return nil, false
	}
	return cached.Stats, true
}

// Snapshot returns the latest fresh snapshot, fetching one when none is known
func (s *DashboardService) Snapshot(ctx context.Context, clinicID string) (*entities.AppointmentStats, error) {
	if stats, ok := s.Latest(ctx, clinicID); ok {
		return stats, nil
	}
	return s.Refresh(ctx, clinicID)
}

// Start refreshes once, then every interval until ctx is cancelled
func (s *DashboardService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	if err := s.RefreshAll(ctx); err != nil {
		log.Warn().Err(err).Msg("initial dashboard refresh failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping dashboard polling")
				return
			case <-ticker.C:
				if err := s.RefreshAll(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic dashboard refresh failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started dashboard polling")
}
