package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"
)

func TestLogger(t *testing.T) {
	Convey("Given the Logger package", t, func() {
		Convey("When creating a console only logger", func() {
			var buf bytes.Buffer
			logger, err := newWithConsole("info", "", &buf)
			So(err, ShouldBeNil)

			logger.Infof("[%s] Starting backup...", "metrics")
			logger.Debugf("hidden")
			logger.Close()

			Convey("It should write info lines and drop debug lines", func() {
				So(buf.String(), ShouldContainSubstring, "[metrics] Starting backup...")
				So(buf.String(), ShouldContainSubstring, "INFO")
				So(buf.String(), ShouldNotContainSubstring, "hidden")
			})
		})

		Convey("When the log level is invalid", func() {
			var buf bytes.Buffer
			logger, err := newWithConsole("loud", "", &buf)
			So(err, ShouldBeNil)

			logger.Infof("info line")
			logger.Debugf("debug line")

			Convey("It should fall back to info", func() {
				So(buf.String(), ShouldContainSubstring, "info line")
				So(buf.String(), ShouldNotContainSubstring, "debug line")
			})
		})

		Convey("When a log file is configured", func() {
			tempDir, err := os.MkdirTemp("", "logger_test")
			So(err, ShouldBeNil)
			defer os.RemoveAll(tempDir)

			logFile := filepath.Join(tempDir, "nested", "influx-s3.log")
			logger, err := newWithConsole("debug", logFile, &bytes.Buffer{})
			So(err, ShouldBeNil)

			logger.Named("restore").Debugf("Extracting archive")
			logger.Close()

			Convey("It should create the directory and write JSON lines", func() {
				content, err := os.ReadFile(logFile)
				So(err, ShouldBeNil)
				So(string(content), ShouldContainSubstring, `"msg":"Extracting archive"`)
				So(string(content), ShouldContainSubstring, `"logger":"restore"`)
			})
		})

		Convey("When the log directory cannot be created", func() {
			logger, err := New("info", "/proc/invalid/path/test.log")

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create log directory")
				So(logger, ShouldBeNil)
			})
		})

		Convey("Level names should parse, with info for anything unknown", func() {
			So(parseLevel("debug"), ShouldEqual, zapcore.DebugLevel)
			So(parseLevel("WARN"), ShouldEqual, zapcore.WarnLevel)
			So(parseLevel(""), ShouldEqual, zapcore.InfoLevel)
			So(parseLevel("loud"), ShouldEqual, zapcore.InfoLevel)
		})

		Convey("NewNop should never panic", func() {
			So(func() { NewNop().Errorf("ignored %d", 1) }, ShouldNotPanic)
		})
	})
}
