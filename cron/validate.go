package cron

import (
	"errors"
	"fmt"
	"strings"
)

// Normalize trims fields and infers Kind when it is empty.
func Normalize(job Job) Job {
	job.ID = strings.TrimSpace(job.ID)
	job.Kind = strings.ToLower(strings.TrimSpace(job.Kind))
	job.Expr = strings.TrimSpace(job.Expr)

	if job.Kind == "" {
		if job.Expr != "" {
			job.Kind = JobKindCron
		} else {
			job.Kind = JobKindEvery
		}
	}
	return job
}

// Validate reports whether a normalized job can be scheduled.
func Validate(job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	switch job.Kind {
	case JobKindEvery:
		if job.Every <= 0 {
			return fmt.Errorf("job %s: interval must be positive", job.ID)
		}
	case JobKindCron:
		if job.Expr == "" {
			return fmt.Errorf("job %s: cron expression is required", job.ID)
		}
	default:
		return fmt.Errorf("job %s: unsupported kind %q", job.ID, job.Kind)
	}
	return nil
}
