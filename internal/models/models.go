package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PortalBandZ is the lowest z coordinate of the portal plane. Rooms at or
// above it host teleport destinations and are never part of the physical grid.
const PortalBandZ = 10000

// Coord is a room position on the world grid.
type Coord struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	Z int `yaml:"z" json:"z"`
}

// Add returns c translated by o.
func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// InPortalBand reports whether c lies on the portal plane.
func (c Coord) InPortalBand() bool {
	return c.Z >= PortalBandZ
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Atmosphere describes the sensory flavour of a room.
type Atmosphere struct {
	Version     int      `yaml:"version" json:"version"`
	Lighting    string   `yaml:"lighting,omitempty" json:"lighting,omitempty"`
	Sound       string   `yaml:"sound,omitempty" json:"sound,omitempty"`
	Smell       string   `yaml:"smell,omitempty" json:"smell,omitempty"`
	Temperature string   `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Mood        string   `yaml:"mood,omitempty" json:"mood,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Portal is a non-directional link to a room, usually on the portal plane.
// ExpiresAtTurn of zero means the portal is permanent.
type Portal struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	TargetRoomID  string `yaml:"target_room_id" json:"target_room_id"`
	OneWay        bool   `yaml:"one_way,omitempty" json:"one_way,omitempty"`
	ExpiresAtTurn int    `yaml:"expires_at_turn,omitempty" json:"expires_at_turn,omitempty"`
}

// Expired reports whether the portal has closed by the given turn.
func (p Portal) Expired(turn int) bool {
	return p.ExpiresAtTurn > 0 && turn >= p.ExpiresAtTurn
}

// Vehicle marks a room that can travel between docks.
type Vehicle struct {
	DockedAt     string   `yaml:"docked_at" json:"docked_at"`
	PreviousDock string   `yaml:"previous_dock,omitempty" json:"previous_dock,omitempty"`
	Destinations []string `yaml:"destinations,omitempty" json:"destinations,omitempty"`
}

// Knows reports whether roomID is a known destination.
func (v *Vehicle) Knows(roomID string) bool {
	for _, id := range v.Destinations {
		if id == roomID {
			return true
		}
	}
	return false
}

// Room is a node of the world graph.
type Room struct {
	ID               string               `yaml:"id" json:"id"`
	StoryID          string               `yaml:"story_id" json:"story_id"`
	Coord            Coord                `yaml:"coord" json:"coord"`
	Name             string               `yaml:"name" json:"name"`
	Description      string               `yaml:"description" json:"description"`
	ShortDescription string               `yaml:"short_description,omitempty" json:"short_description,omitempty"`
	Exits            map[Direction]string `yaml:"exits,omitempty" json:"exits,omitempty"`
	HiddenExits      []Direction          `yaml:"hidden_exits,omitempty" json:"hidden_exits,omitempty"`
	DiscoveredExits  []Direction          `yaml:"discovered_exits,omitempty" json:"discovered_exits,omitempty"`
	Portals          []Portal             `yaml:"portals,omitempty" json:"portals,omitempty"`
	Atmosphere       Atmosphere           `yaml:"atmosphere" json:"atmosphere"`
	VisitCount       int                  `yaml:"visit_count,omitempty" json:"visit_count,omitempty"`
	Vehicle          *Vehicle             `yaml:"vehicle,omitempty" json:"vehicle,omitempty"`
}

// Neighbor returns the room id linked in direction d, hidden or not.
func (r *Room) Neighbor(d Direction) (string, bool) {
	id, ok := r.Exits[d]
	return id, ok && id != ""
}

// IsHidden reports whether d is in the hidden set.
func (r *Room) IsHidden(d Direction) bool {
	return containsDirection(r.HiddenExits, d)
}

// IsDiscovered reports whether d is in the discovered set.
func (r *Room) IsDiscovered(d Direction) bool {
	return containsDirection(r.DiscoveredExits, d)
}

// ExitVisible reports whether the player can see and use the exit in d.
func (r *Room) ExitVisible(d Direction) bool {
	if _, ok := r.Neighbor(d); !ok {
		return false
	}
	return !r.IsHidden(d) || r.IsDiscovered(d)
}

// VisibleExits lists the usable exits keyed by direction.
func (r *Room) VisibleExits() map[Direction]bool {
	out := make(map[Direction]bool)
	for _, d := range Directions {
		if r.ExitVisible(d) {
			out[d] = true
		}
	}
	return out
}

// Link sets the neighbor in d, allocating the exit map if needed.
func (r *Room) Link(d Direction, roomID string) {
	if r.Exits == nil {
		r.Exits = make(map[Direction]string)
	}
	r.Exits[d] = roomID
}

// Discover adds d to the discovered set. It reports whether the set changed.
func (r *Room) Discover(d Direction) bool {
	if containsDirection(r.DiscoveredExits, d) {
		return false
	}
	r.DiscoveredExits = append(r.DiscoveredExits, d)
	return true
}

// Hide adds d to the hidden set.
func (r *Room) Hide(d Direction) {
	if !containsDirection(r.HiddenExits, d) {
		r.HiddenExits = append(r.HiddenExits, d)
	}
}

// Describe returns the long description on the first visit and the short
// one afterwards, when it exists.
func (r *Room) Describe(long bool) string {
	if !long && r.ShortDescription != "" {
		return r.ShortDescription
	}
	return r.Description
}

func containsDirection(set []Direction, d Direction) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}

// ObjectState is the mutable state of a game object.
type ObjectState struct {
	Version  int    `yaml:"version" json:"version"`
	Closable bool   `yaml:"closable,omitempty" json:"closable,omitempty"`
	Open     bool   `yaml:"open,omitempty" json:"open,omitempty"`
	Locked   bool   `yaml:"locked,omitempty" json:"locked,omitempty"`
	Lit      bool   `yaml:"lit,omitempty" json:"lit,omitempty"`
	Broken   bool   `yaml:"broken,omitempty" json:"broken,omitempty"`
	Note     string `yaml:"note,omitempty" json:"note,omitempty"`
}

// GameObject is an item in the world. Exactly one of RoomID and ContainerID
// is set, or neither when the object is in the player's inventory.
type GameObject struct {
	ID            string      `yaml:"id" json:"id"`
	StoryID       string      `yaml:"story_id" json:"story_id"`
	Name          string      `yaml:"name" json:"name"`
	Aliases       []string    `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Description   string      `yaml:"description,omitempty" json:"description,omitempty"`
	RoomID        string      `yaml:"room_id,omitempty" json:"room_id,omitempty"`
	ContainerID   string      `yaml:"container_id,omitempty" json:"container_id,omitempty"`
	Takeable      bool        `yaml:"takeable,omitempty" json:"takeable,omitempty"`
	StoryCritical bool        `yaml:"story_critical,omitempty" json:"story_critical,omitempty"`
	Container     bool        `yaml:"container,omitempty" json:"container,omitempty"`
	State         ObjectState `yaml:"state" json:"state"`
}

// InInventory reports whether the player carries the object.
func (o *GameObject) InInventory() bool {
	return o.RoomID == "" && o.ContainerID == ""
}

// MoveToRoom places the object in a room.
func (o *GameObject) MoveToRoom(roomID string) {
	o.RoomID, o.ContainerID = roomID, ""
}

// MoveToInventory hands the object to the player.
func (o *GameObject) MoveToInventory() {
	o.RoomID, o.ContainerID = "", ""
}

// MoveToContainer places the object inside another object.
func (o *GameObject) MoveToContainer(containerID string) {
	o.RoomID, o.ContainerID = "", containerID
}

// Validate checks the single-location invariant.
func (o *GameObject) Validate() error {
	if o.RoomID != "" && o.ContainerID != "" {
		return fmt.Errorf("object %s is both in room %s and container %s", o.ID, o.RoomID, o.ContainerID)
	}
	if o.ContainerID == o.ID && o.ID != "" {
		return fmt.Errorf("object %s contains itself", o.ID)
	}
	return nil
}

// Accessible reports whether the contents of a container can be reached.
func (o *GameObject) Accessible() bool {
	return o.Container && (!o.State.Closable || o.State.Open)
}

// AbilityTriggers holds the words that route free text to an ability.
type AbilityTriggers struct {
	Version int      `yaml:"version" json:"version"`
	Verbs   []string `yaml:"verbs,omitempty" json:"verbs,omitempty"`
	Nouns   []string `yaml:"nouns,omitempty" json:"nouns,omitempty"`
}

// Ability is a player skill that grows with successful use.
type Ability struct {
	StoryID     string          `yaml:"story_id" json:"story_id"`
	Key         string          `yaml:"key" json:"key"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Level       float64         `yaml:"level" json:"level"`
	Uses        int             `yaml:"uses" json:"uses"`
	Successes   int             `yaml:"successes" json:"successes"`
	Authored    bool            `yaml:"authored,omitempty" json:"authored,omitempty"`
	Triggers    AbilityTriggers `yaml:"triggers" json:"triggers"`
}

// Mastery is the success ratio as a whole percentage.
func (a *Ability) Mastery() int {
	if a.Uses == 0 {
		return 0
	}
	return a.Successes * 100 / a.Uses
}

// ConsequenceType classifies what happens when a timed event fires.
type ConsequenceType string

const (
	ConsequenceGameOver        ConsequenceType = "game_over"
	ConsequenceDamage          ConsequenceType = "damage"
	ConsequenceRoomChange      ConsequenceType = "room_change"
	ConsequenceItemLoss        ConsequenceType = "item_loss"
	ConsequenceCharacterAction ConsequenceType = "character_action"
	ConsequenceStoryBranch     ConsequenceType = "story_branch"
	ConsequenceCustom          ConsequenceType = "custom"
)

// Consequence is the terminal effect of a timed event.
type Consequence struct {
	Type        ConsequenceType `yaml:"type" json:"type"`
	Amount      int             `yaml:"amount,omitempty" json:"amount,omitempty"`
	RoomID      string          `yaml:"room_id,omitempty" json:"room_id,omitempty"`
	ObjectID    string          `yaml:"object_id,omitempty" json:"object_id,omitempty"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
}

// TimedEvent is a countdown that fires once its remaining turns reach zero.
// A blank RoomID makes the event global to the story.
type TimedEvent struct {
	ID               string         `yaml:"id" json:"id"`
	StoryID          string         `yaml:"story_id" json:"story_id"`
	RoomID           string         `yaml:"room_id,omitempty" json:"room_id,omitempty"`
	Name             string         `yaml:"name" json:"name"`
	TotalTurns       int            `yaml:"total_turns" json:"total_turns"`
	RemainingTurns   int            `yaml:"remaining_turns" json:"remaining_turns"`
	Progress         map[int]string `yaml:"progress,omitempty" json:"progress,omitempty"`
	TriggerNarrative string         `yaml:"trigger_narrative" json:"trigger_narrative"`
	Consequence      Consequence    `yaml:"consequence" json:"consequence"`
	Active           bool           `yaml:"active" json:"active"`
	Triggered        bool           `yaml:"triggered" json:"triggered"`
	Preventable      bool           `yaml:"preventable,omitempty" json:"preventable,omitempty"`
	PreventionHint   string         `yaml:"prevention_hint,omitempty" json:"prevention_hint,omitempty"`
}

// InScope reports whether the event is visible from roomID.
func (e *TimedEvent) InScope(roomID string) bool {
	return e.RoomID == "" || e.RoomID == roomID
}

// Trait is one of the five personality dimensions.
type Trait string

const (
	Openness          Trait = "openness"
	Conscientiousness Trait = "conscientiousness"
	Extraversion      Trait = "extraversion"
	Agreeableness     Trait = "agreeableness"
	Neuroticism       Trait = "neuroticism"
)

// Traits lists the dimensions in display order.
var Traits = []Trait{Openness, Conscientiousness, Extraversion, Agreeableness, Neuroticism}

// Valid reports whether t is a known trait.
func (t Trait) Valid() bool {
	for _, v := range Traits {
		if v == t {
			return true
		}
	}
	return false
}

// TraitScore is a 0-100 score with the number of signals behind it.
type TraitScore struct {
	Score      float64 `yaml:"score" json:"score"`
	Confidence int     `yaml:"confidence" json:"confidence"`
}

// PersonalityScore is the inferred personality for one story.
type PersonalityScore struct {
	StoryID string               `yaml:"story_id" json:"story_id"`
	Traits  map[Trait]TraitScore `yaml:"traits" json:"traits"`
}

// NewPersonalityScore starts every trait at the neutral midpoint.
func NewPersonalityScore(storyID string) *PersonalityScore {
	p := &PersonalityScore{StoryID: storyID, Traits: make(map[Trait]TraitScore, len(Traits))}
	for _, t := range Traits {
		p.Traits[t] = TraitScore{Score: 50}
	}
	return p
}

// PersonalitySignal is one observation about the player.
type PersonalitySignal struct {
	Trait      Trait   `yaml:"trait" json:"trait"`
	Delta      float64 `yaml:"delta" json:"delta"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// Implication is the personality effect of a dilemma option.
type Implication struct {
	Trait     Trait   `yaml:"trait" json:"trait"`
	Delta     float64 `yaml:"delta" json:"delta"`
	Secondary Trait   `yaml:"secondary,omitempty" json:"secondary,omitempty"`
}

// DilemmaState tracks a dilemma through its one-shot lifecycle.
type DilemmaState string

const (
	DilemmaUntriggered DilemmaState = "untriggered"
	DilemmaTriggered   DilemmaState = "triggered"
	DilemmaResolved    DilemmaState = "resolved"
)

// DilemmaOption is one branch of a dilemma.
type DilemmaOption struct {
	ID          string      `yaml:"id" json:"id"`
	Text        string      `yaml:"text" json:"text"`
	Outcome     string      `yaml:"outcome" json:"outcome"`
	Implication Implication `yaml:"implication" json:"implication"`
}

// Dilemma is a branching choice bound to a room.
type Dilemma struct {
	ID           string          `yaml:"id" json:"id"`
	StoryID      string          `yaml:"story_id" json:"story_id"`
	RoomID       string          `yaml:"room_id" json:"room_id"`
	Prompt       string          `yaml:"prompt" json:"prompt"`
	Options      []DilemmaOption `yaml:"options" json:"options"`
	State        DilemmaState    `yaml:"state" json:"state"`
	ChosenOption string          `yaml:"chosen_option,omitempty" json:"chosen_option,omitempty"`
}

// Validate checks the option count.
func (d *Dilemma) Validate() error {
	if n := len(d.Options); n < 2 || n > 3 {
		return fmt.Errorf("dilemma %s has %d options, want 2 or 3", d.ID, n)
	}
	for _, opt := range d.Options {
		im := opt.Implication
		if !im.Trait.Valid() {
			return fmt.Errorf("dilemma %s option %s: unknown trait %q", d.ID, opt.ID, im.Trait)
		}
		if im.Secondary != "" && !im.Secondary.Valid() {
			return fmt.Errorf("dilemma %s option %s: unknown secondary trait %q", d.ID, opt.ID, im.Secondary)
		}
	}
	return nil
}

// Option finds an option by id, falling back to a 1-based index or its text.
func (d *Dilemma) Option(choice string) (*DilemmaOption, bool) {
	for i := range d.Options {
		if d.Options[i].ID == choice {
			return &d.Options[i], true
		}
	}
	if idx, err := strconv.Atoi(strings.TrimSpace(choice)); err == nil && idx >= 1 && idx <= len(d.Options) {
		return &d.Options[idx-1], true
	}
	for i := range d.Options {
		if d.Options[i].Text == choice {
			return &d.Options[i], true
		}
	}
	return nil, false
}

// PlayerState is the per-story player record.
type PlayerState struct {
	StoryID   string   `yaml:"story_id" json:"story_id"`
	RoomID    string   `yaml:"room_id" json:"room_id"`
	TurnCount int      `yaml:"turn_count" json:"turn_count"`
	Score     int      `yaml:"score" json:"score"`
	Health    int      `yaml:"health" json:"health"`
	Visited   []string `yaml:"visited,omitempty" json:"visited,omitempty"`
	GameOver  bool     `yaml:"game_over,omitempty" json:"game_over,omitempty"`
}

// Visit records roomID and reports whether it is the first visit.
func (p *PlayerState) Visit(roomID string) bool {
	for _, id := range p.Visited {
		if id == roomID {
			return false
		}
	}
	p.Visited = append(p.Visited, roomID)
	return true
}

// CacheKind names the lookup path of a cache entry.
type CacheKind string

const (
	CacheExact    CacheKind = "exact"
	CacheSemantic CacheKind = "semantic"
)

// CacheEntry is a memoized generator response.
type CacheEntry struct {
	Key       string    `json:"key"`
	Kind      CacheKind `json:"kind"`
	StoryID   string    `json:"story_id"`
	RoomID    string    `json:"room_id"`
	Response  string    `json:"response"`
	Hits      int       `json:"hits"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptEntry is one logged line of play.
type TranscriptEntry struct {
	StoryID string    `json:"story_id"`
	Turn    int       `json:"turn"`
	Role    string    `json:"role"` // "player" or "narrator"
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// PuzzleStep is a completion trigger checked after every turn.
type PuzzleStep struct {
	ID              string   `yaml:"id" json:"id"`
	StoryID         string   `yaml:"story_id" json:"story_id"`
	Name            string   `yaml:"name" json:"name"`
	RoomID          string   `yaml:"room_id,omitempty" json:"room_id,omitempty"`
	RequiredObjects []string `yaml:"required_objects,omitempty" json:"required_objects,omitempty"`
	DependsOn       []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Narrative       string   `yaml:"narrative" json:"narrative"`
	Points          int      `yaml:"points,omitempty" json:"points,omitempty"`
	Completed       bool     `yaml:"completed,omitempty" json:"completed,omitempty"`
}
