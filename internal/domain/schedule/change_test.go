package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schedule-hub/schedule-hub/internal/domain/shared"
)

func validChange() Change {
	return Change{
		Group:         "G1",
		OldControlSum: "abc",
		OldDate:       NewDate(2025, 3, 20),
		OldStart:      NewClock(9, 0),
		OldEnd:        NewClock(10, 30),
	}
}

func TestChange_Validate(t *testing.T) {
	assert.NoError(t, validChange().Validate())

	bad := []func(c *Change){
		func(c *Change) { c.Group = " " },
		func(c *Change) { c.OldControlSum = "" },
		func(c *Change) { c.OldDate = time.Time{} },
		func(c *Change) { c.OldEnd = c.OldStart },
		func(c *Change) { c.NewEnd = ptr(NewClock(8, 0)) },
		func(c *Change) { c.Type = ptr(LessonType("SEMINAR")) },
		func(c *Change) { c.NewDate = &time.Time{} },
	}

	for i, mutate := range bad {
		c := validChange()
		mutate(&c)
		err := c.Validate()
		assert.ErrorIs(t, err, ErrInvalidChange, i)
		assert.True(t, shared.IsValidation(err), i)
	}
}

func TestChange_Effective(t *testing.T) {
	c := validChange()
	assert.False(t, c.IsMove())
	assert.Equal(t, NewClock(9, 0), c.EffectiveStart())

	d := NewDate(2025, 3, 21)
	c.NewDate = &d
	c.NewStart = ptr(NewClock(11, 0))
	c.NewEnd = ptr(NewClock(12, 30))
	assert.True(t, c.IsMove())
	assert.Equal(t, NewClock(11, 0), c.EffectiveStart())
	assert.Equal(t, NewClock(12, 30), c.EffectiveEnd())
	assert.NoError(t, c.Validate())
}
