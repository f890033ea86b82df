package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/events/internal/metrics"
)

const startTimeKey = "metrics:start_time"

// RegisterMetricsHooks times every create, query, update and delete
func RegisterMetricsHooks(db *gorm.DB, m *metrics.Metrics) error {
	before := func(db *gorm.DB) {
		db.InstanceSet(startTimeKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			name := metrics.DBQuery + "_" + op
			if start, ok := db.InstanceGet(startTimeKey); ok {
				m.RecordTimer(name, time.Since(start.(time.Time)))
			}
			m.RecordOutcome(name, db.Error)
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(name string, before, after func(*gorm.DB)) error
	}{
		{"create", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("metrics:before_"+name, b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("metrics:after_"+name, a)
		}},
		{"query", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("metrics:before_"+name, b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("metrics:after_"+name, a)
		}},
		{"update", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("metrics:before_"+name, b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("metrics:after_"+name, a)
		}},
		{"delete", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("metrics:before_"+name, b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("metrics:after_"+name, a)
		}},
	}

	for _, h := range hooks {
		if err := h.register(h.op, before, after(h.op)); err != nil {
			return errors.Wrapf(err, "failed to register %s metrics hook", h.op)
		}
	}
	return nil
}
