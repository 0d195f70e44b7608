package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/config"
	"github.com/guidecms/media-api/src/drivers/remote"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const defaultSpec = "*/15 * * * *"

// Probe periodically verifies that the remote store is reachable so a
// dead FTP endpoint surfaces in the logs before the first upload fails.
type Probe struct {
	runner *cron.Cron
	store  remote.ObjectStore
	logger *logrus.Logger
}

// StartProbe registers the connectivity check on the configured
// schedule and starts the cron runner.
func StartProbe(store remote.ObjectStore, cfg *config.Config, logger *logrus.Logger) (*Probe, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	schedule := strings.TrimSpace(cfg.ProbeSchedule)
	if schedule == "" {
		schedule = defaultSpec
	}

	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid probe schedule: %w", err)
	}

	p := &Probe{
		runner: cron.New(cron.WithParser(cronParser)),
		store:  store,
		logger: logger,
	}

	if _, err := p.runner.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("register probe job: %w", err)
	}

	p.runner.Start()
	logger.WithField("schedule", schedule).Info("remote store probe started")

	return p, nil
}

// Stop halts the runner and waits for an in-flight probe to finish.
func (p *Probe) Stop() {
	ctx := p.runner.Stop()
	<-ctx.Done()
}

func (p *Probe) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := p.store.Ping(ctx); err != nil {
		p.logger.WithError(err).Error("remote store probe failed")
		return
	}

	p.logger.WithField("duration", time.Since(start).String()).Debug("remote store probe ok")
}
