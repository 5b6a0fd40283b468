package discwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pilebones/go-udev/netlink"

	"securerip/internal/logging"
)

// Handler is invoked with the device path of the inserted disc.
type Handler func(ctx context.Context, device string) error

type eventSource interface {
	Monitor(queue chan netlink.UEvent, errs chan error, matcher netlink.Matcher) chan struct{}
	Close() error
}

// Watcher dispatches media insertion events for a single drive.
type Watcher struct {
	device  string
	handler Handler
	logger  *slog.Logger
	connect func() (eventSource, error)

	busy atomic.Bool
	wg   sync.WaitGroup
}

// New builds a watcher for device.
func New(device string, handler Handler, logger *slog.Logger) (*Watcher, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, errors.New("discwatch: device required")
	}
	if handler == nil {
		return nil, errors.New("discwatch: handler required")
	}
	return &Watcher{
		device:  device,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "discwatch"),
		connect: connectUdev,
	}, nil
}

func connectUdev() (eventSource, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, err
	}
	return conn, nil
}

// Run blocks until ctx ends, dispatching insertions to the handler. It waits
// for an in-flight handler before returning.
func (w *Watcher) Run(ctx context.Context) error {
	source, err := w.connect()
	if err != nil {
		return fmt.Errorf("connect udev netlink socket: %w", err)
	}
	defer source.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	stop := source.Monitor(queue, errs, Matcher())
	w.logger.Info("watching for discs",
		logging.String("device", w.device),
		logging.String(logging.FieldEventType, "watch_started"),
	)

	defer w.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			close(stop)
			w.logger.Info("disc watch stopped", logging.String(logging.FieldEventType, "watch_stopped"))
			return nil
		case uevent := <-queue:
			w.dispatch(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "udev monitor error", "watch_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "disc insertions may be missed"),
			)
		}
	}
}

// Busy reports whether a handler is running.
func (w *Watcher) Busy() bool {
	return w.busy.Load()
}

func (w *Watcher) dispatch(ctx context.Context, uevent netlink.UEvent) {
	device := DeviceName(uevent)
	if device != w.device {
		w.logger.Debug("ignoring event for other device",
			logging.String("device", device),
			logging.String("action", string(uevent.Action)),
		)
		return
	}
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.Info("rip in progress, ignoring media event", logging.String("device", device))
		return
	}
	w.logger.Info("audio media detected",
		logging.String("device", device),
		logging.String("action", string(uevent.Action)),
		logging.String(logging.FieldEventType, "disc_detected"),
	)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.busy.Store(false)
		if err := w.handler(ctx, device); err != nil {
			logging.ErrorWithContext(w.logger, "rip triggered by disc insertion failed", "watch_rip_failed",
				logging.Error(err),
				logging.String("device", device),
			)
		}
	}()
}

// Matcher selects media-change events of optical drives.
func Matcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":                        "block",
			"ID_CDROM":                         "1",
			"ID_CDROM_MEDIA":                   "1",
			"ID_CDROM_MEDIA_TRACK_COUNT_AUDIO": ".+",
		},
	})
	return rules
}

// DeviceName returns the /dev path named by a uevent.
func DeviceName(uevent netlink.UEvent) string {
	if name := uevent.Env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/dev/") {
			return "/dev/" + name
		}
		return name
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	return "/dev/" + devpath[strings.LastIndex(devpath, "/")+1:]
}
