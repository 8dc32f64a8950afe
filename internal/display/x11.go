package display

import (
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/breeze-rmm/fbcgrab/internal/logging"
)

var log = logging.L("display")

// X11 opens displays over the X11 wire protocol.
type X11 struct{}

func (X11) OpenDisplay(name string) (Display, error) {
	resolved, err := ResolveName(name)
	if err != nil {
		return nil, err
	}

	conn, err := xgb.NewConnDisplay(resolved)
	if err != nil {
		return nil, fmt.Errorf("open display %q: %w", resolved, err)
	}

	log.Debug("display opened", "display", resolved)
	return &x11Display{name: resolved, conn: conn}, nil
}

type x11Display struct {
	name string

	mu   sync.Mutex
	conn *xgb.Conn
}

func (d *x11Display) Name() string { return d.name }

func (d *x11Display) ScreenSize() (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return 0, 0, fmt.Errorf("display %q is closed", d.name)
	}
	screen := xproto.Setup(d.conn).DefaultScreen(d.conn)
	if screen == nil {
		return 0, 0, fmt.Errorf("display %q: %w", d.name, ErrDisplayNotFound)
	}
	return int(screen.WidthInPixels), int(screen.HeightInPixels), nil
}

func (d *x11Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	return nil
}
