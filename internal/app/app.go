// Package app wires configuration, storage and services into the object
// graph shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/resource-workflow/internal/config"
	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/mailing"
	"github.com/ignite/resource-workflow/internal/pkg/distlock"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/repository/postgres"
	"github.com/ignite/resource-workflow/internal/service/campaign"
	"github.com/ignite/resource-workflow/internal/service/invoice"
	"github.com/ignite/resource-workflow/internal/service/notification"
	"github.com/ignite/resource-workflow/internal/service/validator"
	"github.com/ignite/resource-workflow/internal/worker"
)

// App holds the wired services.
type App struct {
	Config        *config.Config
	DB            *sqlx.DB
	Redis         *redis.Client
	Repos         *postgres.Repositories
	Notifications *notification.Dispatcher
	Campaigns     *campaign.Service
	Invoices      *invoice.Service
	Detectors     *worker.Detectors
}

// New connects to PostgreSQL (and Redis when configured) and builds every
// service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, Repos: postgres.New(db)}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, task locks fall back to PostgreSQL", "addr", cfg.Redis.Addr, "error", err.Error())
			a.Redis.Close()
			a.Redis = nil
		}
	}

	opts := []notification.Option{notification.WithThresholds(cfg.Notifications.ProgressThresholds)}
	if cfg.Notifications.EmailEnabled {
		mailer, err := newMailer(ctx, cfg.SES)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, notification.WithEmail(mailer, mailing.NewRenderer(cfg.Notifications.AppURL),
			a.Repos.People, cfg.SES.FromEmail, cfg.SES.FromName))
	}
	a.Notifications = notification.NewDispatcher(a.Repos.Notifications, opts...)

	resolver := validator.NewResolver(a.Repos.People)
	a.Campaigns = campaign.NewService(a.Repos.Campaigns, a.Repos.People, resolver, a.Notifications)
	a.Invoices = invoice.NewService(a.Repos.Invoices, a.Repos.People, resolver, a.Notifications, invoicePolicy(cfg.Invoice))
	a.Detectors = worker.NewDetectors(a.Repos.Scans, a.Notifications, a.Repos.People, AlertConfig(cfg))
	return a, nil
}

func newMailer(ctx context.Context, cfg config.SESConfig) (notification.Mailer, error) {
	if !cfg.Enabled {
		logger.Info("SES disabled, emails are logged only")
		return mailing.NewLogMailer(), nil
	}
	m, err := mailing.NewSESMailer(ctx, mailing.SESConfig{
		Region:           cfg.Region,
		AccessKey:        cfg.AccessKey,
		SecretKey:        cfg.SecretKey,
		ConfigurationSet: cfg.ConfigurationSet,
	})
	if err != nil {
		return nil, fmt.Errorf("ses mailer: %w", err)
	}
	return m, nil
}

func invoicePolicy(cfg config.InvoiceConfig) invoice.Policy {
	p := invoice.Policy{ElevatedRole: domain.UserRole(cfg.ElevatedRole)}
	for _, r := range cfg.AdminRoles {
		p.AdminRoles = append(p.AdminRoles, domain.UserRole(r))
	}
	return p
}

// AlertConfig converts configured day counts to detector thresholds.
func AlertConfig(cfg *config.Config) worker.AlertConfig {
	ac := worker.DefaultAlertConfig()
	ac.OverdueCampaignAfter = config.Days(cfg.Alerts.OverdueCampaignDays)
	ac.OverdueCampaignDedup = config.Days(cfg.Alerts.OverdueCampaignDedupDays)
	ac.InactiveMin = config.Days(cfg.Alerts.InactiveMinDays)
	ac.InactiveMax = config.Days(cfg.Alerts.InactiveMaxDays)
	ac.FollowupAfter = config.Days(cfg.Alerts.FollowupUserDays)
	ac.EscalateAfter = config.Days(cfg.Alerts.FollowupManagementDays)
	ac.ReadRetention = config.Days(cfg.Notifications.Retention.ReadDays)
	ac.UnreadRetention = config.Days(cfg.Notifications.Retention.UnreadDays)
	return ac
}

// Scheduler builds a scheduler holding every enabled detector task. Runs
// lock through Redis when connected, else through PostgreSQL.
func (a *App) Scheduler() (*worker.Scheduler, error) {
	sc := a.Config.Scheduler
	loc, err := sc.Location()
	if err != nil {
		return nil, err
	}
	s := worker.NewScheduler(loc,
		worker.WithLocks(distlock.NewProvider(a.Redis, a.DB.DB), sc.LockTTL()),
		worker.WithRunTimeout(sc.RunTimeout()),
	)
	tasks := make(map[string]worker.TaskConfig, len(sc.Tasks))
	for name, tc := range sc.Tasks {
		tasks[name] = worker.TaskConfig{Enabled: tc.Enabled, Spec: tc.Spec}
	}
	for _, t := range a.Detectors.Tasks(tasks) {
		if err := s.Register(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
