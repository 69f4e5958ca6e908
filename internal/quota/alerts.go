package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/notify"
)

// AlertStore deduplicates sent alerts.
type AlertStore interface {
	SentToday(ctx context.Context, accountID uint, level config.AlertLevel, date string) (bool, error)
	Create(ctx context.Context, alert *models.QuotaAlert) error
}

// UserLister enumerates users with active accounts.
type UserLister interface {
	DistinctUserIDs(ctx context.Context) ([]string, error)
}

const (
	warningThreshold  = 80
	criticalThreshold = 95
)

// AlertSweeper mails usage alerts as accounts approach their daily limit.
// At most one alert per account, level and day.
type AlertSweeper struct {
	users    UserLister
	alerts   AlertStore
	selector *Selector
	notify   notify.Sender
	log      *zap.Logger
}

func NewAlertSweeper(users UserLister, alerts AlertStore, selector *Selector, sender notify.Sender, log *zap.Logger) *AlertSweeper {
	return &AlertSweeper{
		users:    users,
		alerts:   alerts,
		selector: selector,
		notify:   sender,
		log:      log.Named("alerts"),
	}
}

func alertLevel(percentage int) config.AlertLevel {
	switch {
	case percentage >= 100:
		return config.AlertExhausted
	case percentage >= criticalThreshold:
		return config.AlertCritical
	case percentage >= warningThreshold:
		return config.AlertWarning
	default:
		return ""
	}
}

// Sweep walks every user's accounts and sends any alerts that crossed a
// threshold since the last sweep. Errors are logged per user so one bad
// account cannot starve the rest.
func (s *AlertSweeper) Sweep(ctx context.Context) error {
	userIDs, err := s.users.DistinctUserIDs(ctx)
	if err != nil {
		return err
	}

	date := DateKey(time.Now())
	for _, userID := range userIDs {
		if err := s.sweepUser(ctx, userID, date); err != nil {
			s.log.Error("quota alert sweep failed for user",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

func (s *AlertSweeper) sweepUser(ctx context.Context, userID, date string) error {
	candidates, err := s.selector.OrderedCandidates(ctx, userID, date)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		if c.Account.DailyQuotaLimit <= 0 {
			continue
		}
		percentage := c.Usage * 100 / c.Account.DailyQuotaLimit

		level := alertLevel(percentage)
		if level == "" {
			continue
		}

		sent, err := s.alerts.SentToday(ctx, c.Account.ID, level, date)
		if err != nil {
			return err
		}
		if sent {
			continue
		}

		s.notify.QuotaAlert(ctx, userID, c.Account.Name, c.Usage, c.Account.DailyQuotaLimit, percentage, level)

		if err := s.alerts.Create(ctx, &models.QuotaAlert{
			UserID:              userID,
			ServiceAccountID:    c.Account.ID,
			Level:               level,
			ThresholdPercentage: percentage,
			CurrentUsage:        c.Usage,
			QuotaLimit:          c.Account.DailyQuotaLimit,
			Date:                date,
		}); err != nil {
			return err
		}

		s.log.Info("quota alert sent",
			zap.String("user_id", userID),
			zap.String("account", c.Account.Name),
			zap.String("level", string(level)),
			zap.Int("percentage", percentage),
		)
	}

	return nil
}
