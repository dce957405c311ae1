package playerdomain

import (
	"fmt"
	"strings"
)

// Board is an engine-defined game board. It is stored and handed back to
// the engine but never interpreted here.
type Board uint64

// Direction is a move on the board.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// ParseDirection accepts a direction name in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Engine applies moves. It must be deterministic: the same board and
// direction always give the same result.
type Engine interface {
	// ApplyMove returns the new board, its score and whether the game is over.
	ApplyMove(board Board, dir Direction) (Board, uint64, bool, error)
}
