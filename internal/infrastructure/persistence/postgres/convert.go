package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

const microsPerMinute = int64(time.Minute / time.Microsecond)

func clockToPG(c schedule.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * microsPerMinute, Valid: true}
}

func optionalClockToPG(c *schedule.Clock) pgtype.Time {
	if c == nil {
		return pgtype.Time{}
	}
	return clockToPG(*c)
}

func clockFromPG(t pgtype.Time) schedule.Clock {
	return schedule.Clock(t.Microseconds / microsPerMinute)
}

func optionalClockFromPG(t pgtype.Time) *schedule.Clock {
	if !t.Valid {
		return nil
	}
	c := clockFromPG(t)
	return &c
}

func dateToPG(t time.Time) pgtype.Date {
	return pgtype.Date{Time: schedule.DateOf(t), Valid: true}
}

func optionalDateToPG(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return dateToPG(*t)
}

func dateFromPG(d pgtype.Date) time.Time {
	return schedule.DateOf(d.Time)
}

func optionalDateFromPG(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := dateFromPG(d)
	return &t
}
