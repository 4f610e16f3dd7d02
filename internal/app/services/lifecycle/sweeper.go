package lifecycle

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/zakatwise/zakat-engine/internal/app/domain/hawl"
	"github.com/zakatwise/zakat-engine/internal/app/domain/methodology"
	"github.com/zakatwise/zakat-engine/internal/app/storage"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// DefaultSweepSchedule runs the sweep once a day shortly after midnight UTC.
const DefaultSweepSchedule = "15 0 * * *"

// Sweeper periodically walks every owner, opening new lifecycle records on
// threshold crossings and recalculating the open ones. It runs as a managed
// background service on a cron schedule.
type Sweeper struct {
	tracker     *Tracker
	hawls       storage.HawlStore
	assets      storage.AssetStore
	methodology methodology.Name
	currency    string
	schedule    string
	log         *logger.Logger

	cron *cron.Cron
}

// NewSweeper builds a sweeper that evaluates owners under the given default
// methodology and currency. An empty schedule falls back to
// DefaultSweepSchedule.
func NewSweeper(tracker *Tracker, hawls storage.HawlStore, assets storage.AssetStore,
	name methodology.Name, currency, schedule string, log *logger.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if log == nil {
		log = logger.NewDefault("lifecycle-sweeper")
	}
	return &Sweeper{
		tracker:     tracker,
		hawls:       hawls,
		assets:      assets,
		methodology: name,
		currency:    currency,
		schedule:    schedule,
		log:         log,
	}
}

func (s *Sweeper) Name() string { return "lifecycle-sweeper" }

func (s *Sweeper) Start(_ context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx := context.Background()
		if err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("lifecycle sweep failed")
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("lifecycle sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("lifecycle sweeper stopped")
	return nil
}

// Sweep runs one full pass: threshold detection for every asset owner, then
// a recalculation of every open record. Per-owner failures are logged and
// do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	owners, err := s.assets.ListAssetOwners(ctx)
	if err != nil {
		return err
	}
	for _, ownerID := range owners {
		if _, created, err := s.tracker.DetectThresholdCrossing(ctx, ownerID, s.methodology, s.currency); err != nil {
			s.log.WithError(err).WithField("owner_id", ownerID).Warn("threshold detection failed")
		} else if created {
			s.log.WithField("owner_id", ownerID).Info("new hawl period detected")
		}
	}

	all, err := s.hawls.ListAllHawlRecords(ctx)
	if err != nil {
		return err
	}
	for _, rec := range all {
		if rec.Status != hawl.StatusDraft && rec.Status != hawl.StatusActive {
			continue
		}
		if _, _, err := s.tracker.Recalculate(ctx, rec.ID); err != nil {
			s.log.WithError(err).WithField("hawl_record_id", rec.ID).Warn("recalculation failed")
		}
	}
	return nil
}
