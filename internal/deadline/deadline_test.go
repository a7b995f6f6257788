package deadline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/notify"
	"github.com/meridian-works/meridian/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("unavailable")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) kinds() map[notify.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[notify.Kind]int{}
	for _, m := range r.msgs {
		out[m.Kind]++
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestReminders(t *testing.T) {
	due := testutil.Day(2024, 1, 10)

	got := Reminders(due, []int{2, 1}, 9, time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC),
	}, got)

	got = Reminders(due, []int{2, 1}, 9, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, []time.Time{time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)}, got)

	assert.Empty(t, Reminders(due, []int{2, 1}, 9, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []time.Time{time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)},
		Reminders(due, []int{0}, 9, due))
}

type DeadlineTestSuite struct {
	suite.Suite
	db       *gorm.DB
	clock    *clock
	notifier *recorder
	sweeper  *Sweeper
	sched    *Scheduler
	project  *models.Project
}

func (s *DeadlineTestSuite) SetupTest() {
	s.db = testutil.OpenTestDB(s.T())
	s.clock = &clock{t: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)}
	s.notifier = &recorder{}
	s.sweeper = NewSweeper(s.db, s.notifier, 10*time.Second, WithClock(s.clock.now))
	s.sched = NewScheduler(s.db, DefaultConfig(), s.sweeper, nil)
	s.sched.now = s.clock.now
	s.project = testutil.Project(s.T(), s.db, "Apollo")
}

func (s *DeadlineTestSuite) task(due time.Time) *models.Task {
	t := testutil.Task(s.T(), s.db, s.project.ID, "Write docs", testutil.Hours(4))
	s.Require().NoError(s.db.Model(t).Update("due_date", due).Error)
	t.DueDate = due
	return t
}

func (s *DeadlineTestSuite) TestRescheduleReplacesUnsent() {
	t := s.task(testutil.Day(2024, 1, 20))
	ctx := context.Background()

	created, err := s.sched.Reschedule(ctx, nil, TaskSource(t))
	s.Require().NoError(err)
	s.Len(created, 2)

	// one reminder already went out
	s.Require().NoError(s.db.Model(&created[0]).Update("sent", true).Error)

	t.DueDate = testutil.Day(2024, 1, 30)
	s.Require().NoError(s.sched.RescheduleTask(ctx, nil, t))

	var rows []models.DeadlineNotification
	s.Require().NoError(s.db.Order("notify_at").Find(&rows).Error)
	s.Require().Len(rows, 3)
	s.True(rows[0].Sent)
	s.True(rows[1].NotifyAt.Equal(time.Date(2024, 1, 28, 9, 0, 0, 0, time.UTC)))
	s.True(rows[2].NotifyAt.Equal(time.Date(2024, 1, 29, 9, 0, 0, 0, time.UTC)))
}

func (s *DeadlineTestSuite) TestRescheduleMilestoneAndSprint() {
	m := &models.Milestone{ProjectID: s.project.ID, Name: "Beta", StartDate: testutil.Day(2024, 1, 1), EndDate: testutil.Day(2024, 1, 7)}
	sp := &models.Sprint{ProjectID: s.project.ID, Name: "S1", StartDate: testutil.Day(2024, 1, 1), EndDate: testutil.Day(2024, 1, 14)}
	testutil.Insert(s.T(), s.db, m, sp)

	created, err := s.sched.Reschedule(context.Background(), nil, MilestoneSource(m))
	s.Require().NoError(err)
	s.Len(created, 1, "the two-day reminder is already in the past")

	created, err = s.sched.Reschedule(context.Background(), nil, SprintSource(sp))
	s.Require().NoError(err)
	s.Len(created, 2)
	s.Require().NotNil(created[0].SprintID)
	s.Nil(created[0].TaskID)
}

func (s *DeadlineTestSuite) TestRescheduleInvalidSource() {
	_, err := s.sched.Reschedule(context.Background(), nil, Source{ProjectID: 1})
	s.ErrorIs(err, ErrInvalidSource)

	id := uint(1)
	_, err = s.sched.Reschedule(context.Background(), nil, Source{ProjectID: 1, TaskID: &id, SprintID: &id})
	s.ErrorIs(err, ErrInvalidSource)
}

func (s *DeadlineTestSuite) TestSweepSendsDueNotifications() {
	t := s.task(testutil.Day(2024, 1, 8))
	_, err := s.sched.Reschedule(context.Background(), nil, TaskSource(t))
	s.Require().NoError(err)

	// 2024-01-07 09:00 has passed, 2024-01-06 09:00 too; nothing else pending
	s.clock.t = time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	res, err := s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Sent)
	s.Zero(res.Escalations)

	s.Equal(2, s.notifier.kinds()[notify.KindReminder])
	s.Equal("Write docs", s.notifier.msgs[0].Subject)
	testutil.AssertCount(s.T(), s.db.Where("sent = ?", true), &models.DeadlineNotification{}, 2)
}

func (s *DeadlineTestSuite) TestSweepDebounce() {
	_, err := s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)

	s.clock.t = s.clock.t.Add(5 * time.Second)
	res, err := s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.True(res.Skipped)

	s.clock.t = s.clock.t.Add(5 * time.Second)
	res, err = s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.False(res.Skipped)
}

func (s *DeadlineTestSuite) TestSweepKeepsFailedNotificationsUnsent() {
	t := s.task(testutil.Day(2024, 1, 8))
	_, err := s.sched.Reschedule(context.Background(), nil, TaskSource(t))
	s.Require().NoError(err)

	s.notifier.fail = true
	s.clock.t = time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	res, err := s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Failed)
	testutil.AssertCount(s.T(), s.db.Where("sent = ?", false), &models.DeadlineNotification{}, 2)

	s.notifier.fail = false
	s.clock.t = s.clock.t.Add(time.Minute)
	res, err = s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Sent)
}

func (s *DeadlineTestSuite) TestEscalationOncePerDay() {
	overdue := s.task(testutil.Day(2024, 1, 3))
	done := s.task(testutil.Day(2024, 1, 2))
	s.Require().NoError(s.db.Model(done).Update("status", models.TaskDone).Error)

	m := &models.Milestone{ProjectID: s.project.ID, Name: "Alpha", StartDate: testutil.Day(2023, 12, 1), EndDate: testutil.Day(2024, 1, 1)}
	finished := &models.Milestone{ProjectID: s.project.ID, Name: "Kickoff", StartDate: testutil.Day(2023, 12, 1), EndDate: testutil.Day(2024, 1, 1), IsCompleted: true}
	testutil.Insert(s.T(), s.db, m, finished)

	res, err := s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Escalations)

	s.clock.t = s.clock.t.Add(time.Hour)
	res, err = s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.Zero(res.Escalations)

	s.clock.t = s.clock.t.Add(24 * time.Hour)
	res, err = s.sweeper.Sweep(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Escalations)

	var logs []models.EscalationLog
	s.Require().NoError(s.db.Where("task_id = ?", overdue.ID).Find(&logs).Error)
	s.Len(logs, 2)
	s.Contains(logs[0].Message, "overdue since 2024-01-03")
	s.Equal(4, s.notifier.kinds()[notify.KindEscalation])
}

func (s *DeadlineTestSuite) TestTriggerRunsSweepWithoutQueue() {
	t := s.task(testutil.Day(2024, 1, 8))
	_, err := s.sched.Reschedule(context.Background(), nil, TaskSource(t))
	s.Require().NoError(err)

	s.clock.t = time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	s.sched.Trigger()
	testutil.AssertCount(s.T(), s.db.Where("sent = ?", true), &models.DeadlineNotification{}, 2)
}

func TestDeadlineTestSuite(t *testing.T) {
	suite.Run(t, new(DeadlineTestSuite))
}

func TestSourceColumn(t *testing.T) {
	id := uint(4)
	col, got := Source{MilestoneID: &id}.column()
	require.Equal(t, "milestone_id", col)
	require.Equal(t, uint(4), got)
}
