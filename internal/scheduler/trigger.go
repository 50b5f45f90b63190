package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Trigger decides when a job runs.
type Trigger interface {
	Definition() gocron.JobDefinition
	String() string
}

// Every fires at a fixed interval, the first time one interval after Start.
type Every time.Duration

func (e Every) Definition() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(e))
}

func (e Every) String() string {
	return "every " + time.Duration(e).String()
}

// DailyAt fires once a day at a wall-clock time in the scheduler's location.
type DailyAt struct {
	Hour   int
	Minute int
}

func (d DailyAt) Definition() gocron.JobDefinition {
	return gocron.DailyJob(1, gocron.NewAtTimes(
		gocron.NewAtTime(uint(d.Hour), uint(d.Minute), 0),
	))
}

func (d DailyAt) String() string {
	return fmt.Sprintf("daily at %02d:%02d", d.Hour, d.Minute)
}
