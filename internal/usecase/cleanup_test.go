package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/influx-s3/internal/adapter/storage"
)

func TestCleanup(t *testing.T) {
	Convey("Given restore points of different ages", t, func() {
		store, err := storage.NewLocal(filepath.Join(t.TempDir(), "bucket"))
		So(err, ShouldBeNil)
		ctx := context.Background()

		now := time.Unix(1700000000, 0)
		putObject(t, store, "influxdb/metrics_1.tar.gz", now.AddDate(0, 0, -40))
		putObject(t, store, "influxdb/metrics_2.tar.gz", now.AddDate(0, 0, -31))
		putObject(t, store, "influxdb/metrics_3.tar.gz", now.AddDate(0, 0, -2))
		putObject(t, store, "influxdb/logs_1.tar.gz", now.AddDate(0, 0, -90))
		putObject(t, store, "influxdb/metrics2_1.tar.gz", now.AddDate(0, 0, -90))
		putObject(t, store, "influxdb/metrics_old_1.tar.gz", now.AddDate(0, 0, -90))

		points := NewRestorePoints(store, "influxdb", time.UTC)

		Convey("When retention is 30 days", func() {
			uc := NewCleanup(points, testLogger, 30)
			uc.now = func() time.Time { return now }

			deleted, err := uc.Execute(ctx, "metrics")

			Convey("It should delete only the expired archives of that database, not of databases sharing its prefix", func() {
				So(err, ShouldBeNil)
				So(deleted, ShouldEqual, 2)

				left, err := collectPoints(store, "influxdb/")
				So(err, ShouldBeNil)
				keys := []string{}
				for _, p := range left {
					keys = append(keys, p.Key)
				}
				So(keys, ShouldResemble, []string{
					"influxdb/logs_1.tar.gz",
					"influxdb/metrics2_1.tar.gz",
					"influxdb/metrics_3.tar.gz",
					"influxdb/metrics_old_1.tar.gz",
				})
			})
		})

		Convey("When retention is disabled", func() {
			uc := NewCleanup(points, testLogger, 0)
			uc.now = func() time.Time { return now }

			deleted, err := uc.Execute(ctx, "metrics")

			So(err, ShouldBeNil)
			So(deleted, ShouldEqual, 0)
			left, _ := collectPoints(store, "influxdb/")
			So(len(left), ShouldEqual, 6)
		})

		Convey("When the database name is missing", func() {
			_, err := NewCleanup(points, testLogger, 30).Execute(ctx, "")
			So(err, ShouldNotBeNil)
		})
	})
}
