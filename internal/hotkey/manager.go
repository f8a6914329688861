// Package hotkey grabs a global X11 key combination for toggling the
// listening session from anywhere on the desktop.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// combo is a parsed key combination: one keycode plus a modifier mask.
type combo struct {
	keycode xproto.Keycode
	mods    uint16
}

// lockMods are the modifier variants grabbed alongside the requested mask
// so the binding works regardless of NumLock/CapsLock state.
var lockMods = []uint16{
	0,
	uint16(xproto.ModMask2),
	uint16(xproto.ModMaskLock),
	uint16(xproto.ModMask2) | uint16(xproto.ModMaskLock),
}

var namedKeysyms = map[string]uint32{
	"space":  0x0020,
	"return": 0xff0d,
	"enter":  0xff0d,
	"escape": 0xff1b,
	"esc":    0xff1b,
	"tab":    0xff09,
	"f1":     0xffbe,
	"f2":     0xffbf,
	"f3":     0xffc0,
	"f4":     0xffc1,
	"f5":     0xffc2,
	"f6":     0xffc3,
	"f7":     0xffc4,
	"f8":     0xffc5,
	"f9":     0xffc6,
	"f10":    0xffc7,
	"f11":    0xffc8,
	"f12":    0xffc9,
}

// Manager owns one global key grab at a time. The bound combination can be
// swapped at runtime when the user changes it in settings.
type Manager struct {
	onPress func()

	mu      sync.Mutex
	conn    *xgb.Conn
	root    xproto.Window
	current *combo

	stopOnce sync.Once
	stop     chan struct{}
}

// Listen connects to the X server, grabs spec (e.g. "Alt-r" or
// "Ctrl+Shift-a") and invokes onPress in a fresh goroutine on every press.
func Listen(spec string, onPress func()) (*Manager, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connecting to X11: %w", err)
	}

	m := &Manager{
		onPress: onPress,
		conn:    conn,
		root:    xproto.Setup(conn).DefaultScreen(conn).Root,
		stop:    make(chan struct{}),
	}
	if err := m.Rebind(spec); err != nil {
		conn.Close()
		return nil, err
	}
	go m.eventLoop()
	return m, nil
}

// Rebind swaps the grabbed combination, releasing the previous one first.
func (m *Manager) Rebind(spec string) error {
	c, err := parse(m.conn, spec)
	if err != nil {
		return fmt.Errorf("parsing hotkey %q: %w", spec, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.ungrabLocked(*m.current)
		m.current = nil
	}
	if err := m.grabLocked(c); err != nil {
		return fmt.Errorf("grabbing hotkey %q: %w", spec, err)
	}
	m.current = &c
	return nil
}

func (m *Manager) grabLocked(c combo) error {
	for _, lock := range lockMods {
		err := xproto.GrabKeyChecked(m.conn, true, m.root, c.mods|lock, c.keycode,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err != nil {
			m.ungrabLocked(c)
			return err
		}
	}
	return nil
}

func (m *Manager) ungrabLocked(c combo) {
	for _, lock := range lockMods {
		xproto.UngrabKey(m.conn, c.keycode, m.root, c.mods|lock)
	}
}

func (m *Manager) eventLoop() {
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		ev, err := m.conn.WaitForEvent()
		if err != nil {
			log.Printf("hotkey: X11 event error: %v", err)
			return
		}
		if ev == nil {
			return
		}
		if _, ok := ev.(xproto.KeyPressEvent); ok {
			go m.onPress()
		}
	}
}

// Stop releases the grab and closes the X11 connection. Idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		if m.current != nil {
			m.ungrabLocked(*m.current)
			m.current = nil
		}
		m.mu.Unlock()
		m.conn.Close()
	})
}

func parse(conn *xgb.Conn, spec string) (combo, error) {
	parts := strings.FieldsFunc(spec, func(r rune) bool {
		return r == '+' || r == '-'
	})

	var c combo
	var keyName string
	for _, p := range parts {
		switch strings.ToLower(p) {
		case "alt", "mod1":
			c.mods |= uint16(xproto.ModMask1)
		case "ctrl", "control":
			c.mods |= uint16(xproto.ModMaskControl)
		case "shift":
			c.mods |= uint16(xproto.ModMaskShift)
		case "super", "mod4", "win":
			c.mods |= uint16(xproto.ModMask4)
		default:
			keyName = p
		}
	}
	if keyName == "" {
		return combo{}, fmt.Errorf("no key specified")
	}

	keysym, err := lookupKeysym(keyName)
	if err != nil {
		return combo{}, err
	}
	c.keycode, err = findKeycode(conn, keysym)
	if err != nil {
		return combo{}, fmt.Errorf("key %q: %w", keyName, err)
	}
	return c, nil
}

func lookupKeysym(keyName string) (uint32, error) {
	if len(keyName) == 1 {
		// ASCII characters map directly to keysyms.
		return uint32(keyName[0]), nil
	}
	if sym, ok := namedKeysyms[strings.ToLower(keyName)]; ok {
		return sym, nil
	}
	return 0, fmt.Errorf("unknown key name %q", keyName)
}

func findKeycode(conn *xgb.Conn, keysym uint32) (xproto.Keycode, error) {
	setup := xproto.Setup(conn)
	min, max := setup.MinKeycode, setup.MaxKeycode

	km, err := xproto.GetKeyboardMapping(conn, min, byte(max-min+1)).Reply()
	if err != nil {
		return 0, fmt.Errorf("getting keyboard mapping: %w", err)
	}

	perKeycode := int(km.KeysymsPerKeycode)
	for i, sym := range km.Keysyms {
		if uint32(sym) == keysym {
			return min + xproto.Keycode(i/perKeycode), nil
		}
	}
	return 0, fmt.Errorf("not present in keyboard mapping")
}
