package influxd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/semmidev/influx-s3/internal/domain"
)

// InitService stops and starts the database through the `service` command.
type InitService struct {
	name   string
	runner Runner
}

func NewInitService(name string, runner Runner) *InitService {
	return &InitService{name: name, runner: runner}
}

func (s *InitService) Stop(ctx context.Context) error {
	if _, err := s.runner.Run(ctx, "service", s.name, "stop"); err != nil {
		return fmt.Errorf("stop %s: %w", s.name, err)
	}
	return nil
}

func (s *InitService) Start(ctx context.Context) error {
	if _, err := s.runner.Run(ctx, "service", s.name, "start"); err != nil {
		return fmt.Errorf("start %s: %w", s.name, err)
	}
	return nil
}

// SystemdService talks to systemd over the system D-Bus and waits for the
// queued job to finish.
type SystemdService struct {
	unit string
	dial func(ctx context.Context) (*dbus.Conn, error)
}

func NewSystemdService(name string) *SystemdService {
	return &SystemdService{
		unit: unitName(name),
		dial: dbus.NewSystemConnectionContext,
	}
}

func (s *SystemdService) Stop(ctx context.Context) error {
	return s.run(ctx, "stop", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, s.unit, "replace", ch)
	})
}

func (s *SystemdService) Start(ctx context.Context) error {
	return s.run(ctx, "start", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, s.unit, "replace", ch)
	})
}

func (s *SystemdService) run(ctx context.Context, verb string, queue func(*dbus.Conn, chan<- string) (int, error)) error {
	op := fmt.Sprintf("systemctl %s %s", verb, s.unit)

	conn, err := s.dial(ctx)
	if err != nil {
		return domain.NewExternalCommandError(op, -1, "", fmt.Errorf("system bus: %w", err))
	}
	defer conn.Close()

	result := make(chan string, 1)
	if _, err := queue(conn, result); err != nil {
		return domain.NewExternalCommandError(op, -1, "", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case status := <-result:
		if status != "done" {
			return domain.NewExternalCommandError(op, 1, "", fmt.Errorf("job finished with %q", status))
		}
	}
	return nil
}

func unitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}
