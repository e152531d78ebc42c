package main

import (
	"context"
	"errors"
	stdlog "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/pflag"

	"desk-agenda/internal/bot"
	"desk-agenda/internal/config"
	"desk-agenda/internal/model"
	"desk-agenda/internal/repository"
	"desk-agenda/internal/service"
	pkgLog "desk-agenda/pkg/log"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "path to a config file (default: search ./config, . and ~/.config/deskagenda)")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configFile)
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	l := pkgLog.Init(pkgLog.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	now := func() time.Time { return time.Now().In(cfg.Location) }

	// The agenda lock serialises every call into the task store.
	var agenda sync.Mutex

	repo := repository.NewTaskFileRepository(cfg.Storage.TasksPath, l)
	if repo.HasBackups() {
		l.Infof(ctx, "Backups found next to %s", repo.Path())
	}
	taskSvc := service.NewTaskService(repo, repo.Load(ctx), l)
	reminderSvc := service.NewReminderService(taskSvc)
	refresh(ctx, l, taskSvc, now())

	var notifier service.Notifier = logNotifier{l: l}
	var telegramBot *bot.Bot
	if cfg.Telegram.Enabled {
		db, err := repository.NewDB(cfg.Storage.DatabaseURL, l)
		if err != nil {
			l.Fatalf(ctx, "db: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		userRepo := repository.NewUserRepository(db)

		telegramBot, err = bot.New(cfg.Telegram.Token, cfg.Telegram.MessagesPerSecond, userRepo, taskSvc, reminderSvc, &agenda, now, l)
		if err != nil {
			l.Fatalf(ctx, "bot: %v", err)
		}
		notifier = telegramBot
	}
	alertSvc := service.NewAlertService(taskSvc, notifier, cfg.Alert.Grace, l)

	scheduler := service.NewSchedulerService(cfg.Location, &agenda, l)
	if _, err := scheduler.ScheduleInterval(cfg.Schedule.RefreshInterval, "refresh", func(ctx context.Context) {
		refresh(ctx, l, taskSvc, now())
	}); err != nil {
		l.Fatalf(ctx, "schedule refresh: %v", err)
	}
	if _, err := scheduler.ScheduleInterval(cfg.Schedule.AlertInterval, "alerts", func(ctx context.Context) {
		if _, err := alertSvc.Scan(ctx, now()); err != nil {
			l.Errorf(ctx, "Alert scan: %v", err)
		}
	}); err != nil {
		l.Fatalf(ctx, "schedule alerts: %v", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.Schedule.PurgeTime, "purge", func(ctx context.Context) {
		if _, err := taskSvc.PurgeOneOffCompletedYesterday(ctx, civil.DateOf(now())); err != nil {
			l.Errorf(ctx, "Purge: %v", err)
		}
	}); err != nil {
		l.Fatalf(ctx, "schedule purge: %v", err)
	}
	if telegramBot != nil && cfg.Schedule.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.Schedule.ReportInterval, "report", func(ctx context.Context) {
			if err := telegramBot.Broadcast(ctx, reminderSvc.Summary(now())); err != nil && !errors.Is(err, context.Canceled) {
				l.Warnf(ctx, "Report: %v", err)
			}
		}); err != nil {
			l.Fatalf(ctx, "schedule report: %v", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	l.Infof(ctx, "Desk agenda started with %d tasks from %s", taskSvc.Len(), repo.Path())
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Errorf(ctx, "Bot stopped with error: %v", err)
		}
	} else {
		<-ctx.Done()
	}
	l.Info(context.Background(), "Shutdown complete.")
}

// refresh rolls recurring tasks forward and drops one-off tasks finished
// yesterday.
func refresh(ctx context.Context, l pkgLog.Logger, tasks *service.TaskService, now time.Time) {
	today := civil.DateOf(now)
	if err := tasks.AdvanceAllIfDue(ctx, today); err != nil {
		l.Errorf(ctx, "Advance tasks: %v", err)
	}
	if _, err := tasks.PurgeOneOffCompletedYesterday(ctx, today); err != nil {
		l.Errorf(ctx, "Purge: %v", err)
	}
}

// logNotifier records alerts when no chat front-end is configured.
type logNotifier struct {
	l pkgLog.Logger
}

func (n logNotifier) NotifyAlert(ctx context.Context, task model.Task, now time.Time) error {
	row := service.RowFor(task, now)
	n.l.Warnf(ctx, "Alert: %s due %s %s (%s)", row.Name, row.DateText, row.TimeText, row.StatusText)
	return nil
}
