package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"evento/internal/config"
	"evento/internal/email"
	"evento/internal/models"
)

// DueAssignments lists open assignments with a deadline before t
type DueAssignments interface {
	ListDueBefore(ctx context.Context, t time.Time) ([]models.AssignmentDetail, error)
}

// ReminderSender delivers reminder emails
type ReminderSender interface {
	SendReviewReminder(to, reviewerName string, items []email.ReminderItem) error
}

// EventNames resolves event names for reminder emails
type EventNames interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	assignments DueAssignments
	events      EventNames
	sender      ReminderSender
	config      *config.SchedulerConfig
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(assignments DueAssignments, events EventNames, sender ReminderSender, cfg *config.SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		assignments: assignments,
		events:      events,
		sender:      sender,
		config:      cfg,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", "review_reminders_enabled", s.config.EnableReviewReminders)

	if s.config.EnableReviewReminders {
		if err := s.startCronTask(s.config.ReviewReminderCron, "review_reminders", s.SendReviewReminders); err != nil {
			slog.Error("Failed to start review reminders", "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	s.cancel()
	s.wg.Wait()
}

// schedule is a parsed subset of a 5-field cron expression
type schedule struct {
	minuteInterval int // "*/n" in the minute field
	hourInterval   int // "*/n" in the hour field
	minute         int
	hour           int
	weekday        *time.Weekday
}

// parseCron supports "minute hour day month weekday" with */n intervals in
// the minute or hour field, e.g. "0 8 * * *" daily, "0 9 * * 1" Mondays,
// "*/5 * * * *" every five minutes. Day and month must be "*". A minute
// interval needs every other field to be "*", an hour interval the weekday.
func parseCron(expr string) (schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return schedule{}, fmt.Errorf("invalid cron expression: %s (expected 5 fields)", expr)
	}
	if parts[2] != "*" || parts[3] != "*" {
		return schedule{}, fmt.Errorf("day and month fields are not supported: %s", expr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return schedule{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		if parts[1] != "*" || parts[4] != "*" {
			return schedule{}, fmt.Errorf("minute intervals need \"*\" in the other fields: %s", expr)
		}
		return schedule{minuteInterval: interval}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return schedule{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return schedule{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		if parts[4] != "*" {
			return schedule{}, fmt.Errorf("hour intervals cannot be limited to a weekday: %s", expr)
		}
		return schedule{hourInterval: interval, minute: minute}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return schedule{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	sch := schedule{minute: minute, hour: hour}
	if parts[4] != "*" {
		weekday, err := strconv.Atoi(parts[4])
		if err != nil || weekday < 0 || weekday > 6 {
			return schedule{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
		}
		wd := time.Weekday(weekday)
		sch.weekday = &wd
	}
	return sch, nil
}

// next returns the first run strictly after from
func (sch schedule) next(from time.Time) time.Time {
	switch {
	case sch.minuteInterval > 0:
		return from.Add(time.Duration(sch.minuteInterval) * time.Minute)
	case sch.hourInterval > 0:
		return nextHourlyInterval(from, sch.hourInterval, sch.minute)
	case sch.weekday != nil:
		return nextWeekday(from, *sch.weekday, sch.hour, sch.minute)
	default:
		return nextDailyRun(from, sch.hour, sch.minute)
	}
}

func (s *Scheduler) startCronTask(cronExpr, taskName string, task func(ctx context.Context)) error {
	sch, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			now := s.now()
			next := sch.next(now)
			slog.Info("Next task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-timer.C:
				slog.Info("Running scheduled task", "task", taskName)
				task(s.ctx)
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
	return nil
}

// nextHourlyInterval calculates the next run time for hourly intervals
func nextHourlyInterval(from time.Time, hourInterval, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	for next.Hour()%hourInterval != 0 {
		next = next.Add(time.Hour)
	}
	return next
}

// nextWeekday calculates the next occurrence of a specific weekday and time
func nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}
	next = next.AddDate(0, 0, daysUntil)

	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// nextDailyRun calculates the next daily run time
func nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SendReviewReminders emails every reviewer whose open assignments are due
// within the configured window, one email per reviewer
func (s *Scheduler) SendReviewReminders(ctx context.Context) {
	due, err := s.assignments.ListDueBefore(ctx, s.now().Add(s.config.ReminderWindow))
	if err != nil {
		slog.Error("Failed to get due assignments", "error", err)
		return
	}

	type reviewer struct {
		email string
		name  string
		items []email.ReminderItem
	}
	byReviewer := make(map[int64]*reviewer)
	var order []int64
	eventNames := make(map[int64]string)

	for _, a := range due {
		name, ok := eventNames[a.EventID]
		if !ok {
			if ev, err := s.events.GetByID(ctx, a.EventID); err == nil {
				name = ev.Name
			} else {
				name = fmt.Sprintf("Event #%d", a.EventID)
			}
			eventNames[a.EventID] = name
		}

		r := byReviewer[a.ReviewerID]
		if r == nil {
			r = &reviewer{email: a.ReviewerEmail, name: a.ReviewerName}
			byReviewer[a.ReviewerID] = r
			order = append(order, a.ReviewerID)
		}
		r.items = append(r.items, email.ReminderItem{Event: name, Title: a.Title, Deadline: a.Deadline})
	}

	sent := 0
	for _, id := range order {
		r := byReviewer[id]
		if err := s.sender.SendReviewReminder(r.email, r.name, r.items); err != nil {
			slog.Error("Failed to send review reminder", "reviewer_id", id, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Review reminders completed", "reminders_sent", sent, "due_assignments", len(due))
}
