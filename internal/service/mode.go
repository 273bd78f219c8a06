package service

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Mode selects one of the transport networks, each backed by its own schedule database.
type Mode int

const (
	Automobilistico Mode = iota
	Navigazione
)

var ErrInvalidService = errors.New("invalid service")

var names = map[Mode]string{
	Automobilistico: "automobilistico",
	Navigazione:     "navigazione",
}

// Modes lists every known mode in display order.
func Modes() []Mode { return []Mode{Automobilistico, Navigazione} }

// Parse matches a service name case-insensitively.
func Parse(s string) (Mode, error) {
	in := cases.Fold().String(strings.TrimSpace(s))
	for _, m := range Modes() {
		if in == names[m] {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidService, s)
}

func (m Mode) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Label is the capitalised name offered on the service keyboard.
func (m Mode) Label() string {
	n := m.String()
	return strings.ToUpper(n[:1]) + n[1:]
}

func (m Mode) Valid() bool {
	_, ok := names[m]
	return ok
}
