package models

import "strings"

// Direction is one of the six grid directions.
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
	Up    Direction = "up"
	Down  Direction = "down"
)

// Directions lists every direction in display order.
var Directions = []Direction{North, South, East, West, Up, Down}

var directionAliases = map[string]Direction{
	"n": North, "north": North,
	"s": South, "south": South,
	"e": East, "east": East,
	"w": West, "west": West,
	"u": Up, "up": Up, "upstairs": Up,
	"d": Down, "down": Down, "downstairs": Down,
}

// ParseDirection accepts full names and single-letter abbreviations.
func ParseDirection(s string) (Direction, bool) {
	d, ok := directionAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// Opposite returns the reciprocal direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Up:
		return Down
	case Down:
		return Up
	}
	return ""
}

// Offset is the coordinate step taken when moving in d.
func (d Direction) Offset() Coord {
	switch d {
	case North:
		return Coord{Y: 1}
	case South:
		return Coord{Y: -1}
	case East:
		return Coord{X: 1}
	case West:
		return Coord{X: -1}
	case Up:
		return Coord{Z: 1}
	case Down:
		return Coord{Z: -1}
	}
	return Coord{}
}

// Valid reports whether d is one of the six directions.
func (d Direction) Valid() bool {
	return d.Opposite() != ""
}
