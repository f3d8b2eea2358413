package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

func TestClockConversion(t *testing.T) {
	c := schedule.NewClock(14, 45)

	pg := clockToPG(c)
	assert.True(t, pg.Valid)
	assert.Equal(t, int64((14*60+45)*60*1_000_000), pg.Microseconds)
	assert.Equal(t, c, clockFromPG(pg))

	assert.False(t, optionalClockToPG(nil).Valid)
	assert.Nil(t, optionalClockFromPG(optionalClockToPG(nil)))
	assert.Equal(t, c, *optionalClockFromPG(optionalClockToPG(&c)))
}

func TestDateConversion(t *testing.T) {
	d := schedule.NewDate(2025, 9, 8)

	assert.Equal(t, d, dateFromPG(dateToPG(d)))
	assert.Nil(t, optionalDateFromPG(optionalDateToPG(nil)))
	assert.Equal(t, d, *optionalDateFromPG(optionalDateToPG(&d)))
}

func TestApplyPoolOptions(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/schedule?pool_max_conns=4")
	require.NoError(t, err)

	applyPoolOptions(cfg, PoolOptions{MinConns: 1, ApplicationName: "schedule-hub-test"})

	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, "UTC", cfg.ConnConfig.RuntimeParams["timezone"])
	assert.Equal(t, "schedule-hub-test", cfg.ConnConfig.RuntimeParams["application_name"])
}
