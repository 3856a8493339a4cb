package ws

import (
	"errors"
	"fmt"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
	"github.com/coreman2200/ledsmooth/internal/effect"
	"github.com/coreman2200/ledsmooth/internal/smoothing"
)

// Command is one message on the /control channel.
//
//	{"cmd":"fill","color":"#ff8800"}
//	{"cmd":"frame","rgb":"<base64 r,g,b...>"} or {"cmd":"frame","colors":["#ff0000",...]}
//	{"cmd":"enable","value":false}
//	{"cmd":"select","id":2,"force":true}
//	{"cmd":"component","name":"LEDDEVICE","active":false}
//	{"cmd":"clear"}
//	{"cmd":"runEffect","name":"rainbow","speed":2}
//	{"cmd":"stopEffect"}
//	{"cmd":"reload"}
type Command struct {
	Cmd    string   `json:"cmd"`
	Color  string   `json:"color,omitempty"`
	Colors []string `json:"colors,omitempty"`
	RGB    []byte   `json:"rgb,omitempty"`
	Value  *bool    `json:"value,omitempty"`
	ID     *uint32  `json:"id,omitempty"`
	Force  bool     `json:"force,omitempty"`
	Name   string   `json:"name,omitempty"`
	Active *bool    `json:"active,omitempty"`
	Speed  float64  `json:"speed,omitempty"`
}

// Reply answers every Command.
type Reply struct {
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
	Stats *smoothing.Stats `json:"stats,omitempty"`
}

// Apply executes msg against the engine and player.
func (s *Server) Apply(msg Command) Reply {
	if err := s.apply(msg); err != nil {
		s.log.Warn().Err(err).Str("cmd", msg.Cmd).Msg("control command failed")
		return Reply{Error: err.Error()}
	}
	st := s.Engine.Stats()
	return Reply{OK: true, Stats: &st}
}

func (s *Server) apply(msg Command) error {
	switch msg.Cmd {
	case "fill":
		c, err := colorframe.ParseHex(msg.Color)
		if err != nil {
			return err
		}
		s.stopEffect()
		return s.Engine.SubmitFrame(colorframe.Fill(s.Layout.Count(), c))
	case "frame":
		f, err := frameFrom(msg)
		if err != nil {
			return err
		}
		s.stopEffect()
		return s.Engine.SubmitFrame(f)
	case "enable":
		if msg.Value == nil {
			return errors.New("enable needs a value")
		}
		s.Engine.SetEnable(*msg.Value)
	case "select":
		if msg.ID == nil {
			return errors.New("select needs an id")
		}
		if !s.Engine.SelectConfig(smoothing.ConfigID(*msg.ID), msg.Force) {
			return fmt.Errorf("unknown config %d; using %d", *msg.ID, smoothing.DefaultConfigID)
		}
	case "component":
		if msg.Name == "" || msg.Active == nil {
			return errors.New("component needs a name and active")
		}
		s.Engine.ComponentStateChange(smoothing.Component(msg.Name), *msg.Active)
	case "clear":
		s.Engine.ClearQueuedColors(false, false)
	case "runEffect":
		if s.Player == nil {
			return errors.New("effects are not available")
		}
		kind, ok := effect.ParseKind(msg.Name)
		if !ok {
			kind = effect.Kind(msg.Name)
		}
		return s.Player.Start(effect.Plan{Kind: kind, Speed: msg.Speed})
	case "stopEffect":
		s.stopEffect()
	case "reload":
		if s.Reload == nil {
			return errors.New("reload is not available")
		}
		return s.Reload()
	default:
		return fmt.Errorf("unknown command %q", msg.Cmd)
	}
	return nil
}

func (s *Server) stopEffect() {
	if s.Player != nil {
		s.Player.Stop()
	}
}

func frameFrom(msg Command) (colorframe.Frame, error) {
	if len(msg.Colors) > 0 {
		f := make(colorframe.Frame, len(msg.Colors))
		for i, h := range msg.Colors {
			c, err := colorframe.ParseHex(h)
			if err != nil {
				return nil, fmt.Errorf("colors[%d]: %w", i, err)
			}
			f[i] = c
		}
		return f, nil
	}
	if len(msg.RGB) == 0 {
		return nil, errors.New("frame needs rgb or colors")
	}
	return colorframe.FromBytes(msg.RGB)
}
