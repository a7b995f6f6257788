package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ModelsTestSuite struct {
	suite.Suite
}

func (s *ModelsTestSuite) TestDate() {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2024, 3, 10, 2, 30, 0, 0, loc)
	assert.Equal(s.T(), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Date(in))
	assert.Nil(s.T(), DatePtr(nil))
}

func (s *ModelsTestSuite) TestOverlaps() {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	assert.True(s.T(), Overlaps(d(1), d(5), d(5), d(9)))
	assert.True(s.T(), Overlaps(d(3), d(4), d(1), d(9)))
	assert.False(s.T(), Overlaps(d(1), d(4), d(5), d(9)))
}

func (s *ModelsTestSuite) TestLeaveDays() {
	r := LeaveRequest{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(s.T(), 3, r.Days())
	r.EndDate = r.StartDate
	assert.Equal(s.T(), 1, r.Days())
}

func (s *ModelsTestSuite) TestTaskHours() {
	t := Task{}
	assert.Zero(s.T(), t.Hours())
	h := 6.5
	t.EstimatedHours = &h
	assert.Equal(s.T(), 6.5, t.Hours())
}

func (s *ModelsTestSuite) TestNotificationSourceCount() {
	id := uint(1)
	n := DeadlineNotification{TaskID: &id}
	assert.Equal(s.T(), 1, n.SourceCount())
	n.SprintID = &id
	assert.Equal(s.T(), 2, n.SourceCount())
}

func (s *ModelsTestSuite) TestStatusValidation() {
	assert.True(s.T(), TaskBlocked.Valid())
	assert.False(s.T(), TaskStatus("done").Valid())
	assert.True(s.T(), ProjectActive.Valid())
	assert.False(s.T(), Priority("Urgent").Valid())
}

func TestModelsTestSuite(t *testing.T) {
	suite.Run(t, new(ModelsTestSuite))
}
