package led

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// Tee writes every frame to a primary driver and any number of mirrors.
// Only the primary's error is returned; mirror failures are logged.
type Tee struct {
	Primary Driver
	Mirrors []Driver
	Log     zerolog.Logger
}

func NewTee(primary Driver, log zerolog.Logger, mirrors ...Driver) *Tee {
	return &Tee{Primary: primary, Mirrors: mirrors, Log: log}
}

func (t *Tee) Write(f colorframe.Frame) error {
	err := t.Primary.Write(f)
	for _, m := range t.Mirrors {
		if merr := m.Write(f); merr != nil && !errors.Is(merr, ErrClosed) {
			t.Log.Debug().Err(merr).Msg("mirror write failed")
		}
	}
	return err
}

func (t *Tee) Close() error {
	errs := []error{t.Primary.Close()}
	for _, m := range t.Mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
