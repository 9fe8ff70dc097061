package blackjack

import "fmt"

// Phase is the position of a game in its lifecycle. Phases only move forward.
type Phase int

const (
	PhaseInitial Phase = iota
	PhasePlayerTurn
	PhaseDealerTurn
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhasePlayerTurn:
		return "player_turn"
	case PhaseDealerTurn:
		return "dealer_turn"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseInitial, PhasePlayerTurn, PhaseDealerTurn, PhaseFinished} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid phase %q", text)
}

// Action is a player decision.
type Action int

const (
	Hit Action = iota + 1
	Stand
	Surrender
)

func (a Action) String() string {
	switch a {
	case Hit:
		return "hit"
	case Stand:
		return "stand"
	case Surrender:
		return "surrender"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction maps the wire vocabulary onto the closed action set.
func ParseAction(s string) (Action, error) {
	switch s {
	case "hit":
		return Hit, nil
	case "stand":
		return Stand, nil
	case "surrender":
		return Surrender, nil
	}
	return 0, Errorf(KindInvalidTransition, "parse action", "", "unknown action %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// transitions lists, per phase, every legal action and the phase it moves
// the game into. Hit may move further to finished when the player busts.
// Phases absent from the table accept no actions.
var transitions = map[Phase]map[Action]Phase{
	PhaseInitial: {
		Hit:       PhasePlayerTurn,
		Stand:     PhaseDealerTurn,
		Surrender: PhaseFinished,
	},
	PhasePlayerTurn: {
		Hit:       PhasePlayerTurn,
		Stand:     PhaseDealerTurn,
		Surrender: PhaseFinished,
	},
}

// Next returns the phase that action a moves p into.
func (p Phase) Next(a Action) (Phase, bool) {
	next, ok := transitions[p][a]
	return next, ok
}

// LegalActions returns the actions accepted in p in a stable order.
func (p Phase) LegalActions() []Action {
	var out []Action
	for _, a := range []Action{Hit, Stand, Surrender} {
		if _, ok := transitions[p][a]; ok {
			out = append(out, a)
		}
	}
	return out
}
