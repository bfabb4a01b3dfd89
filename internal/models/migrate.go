package models

import (
	"sort"
	"strings"
)

// Current versions of the typed state blobs. Records decoded with an older
// version are upgraded in place by the Migrate methods.
const (
	AtmosphereVersion  = 1
	ObjectStateVersion = 1
	TriggersVersion    = 1
)

// Migrate upgrades an atmosphere record to AtmosphereVersion.
func (a *Atmosphere) Migrate() {
	if a.Version >= AtmosphereVersion {
		return
	}
	// v0 stored tags verbatim from authored content.
	a.Tags = normalizeWords(a.Tags)
	a.Version = AtmosphereVersion
}

// Migrate upgrades an object state record to ObjectStateVersion.
func (s *ObjectState) Migrate() {
	if s.Version >= ObjectStateVersion {
		return
	}
	// v0 allowed a locked object to be flagged open.
	if s.Locked {
		s.Open = false
		s.Closable = true
	}
	s.Version = ObjectStateVersion
}

// Migrate upgrades trigger lists to TriggersVersion.
func (t *AbilityTriggers) Migrate() {
	if t.Version >= TriggersVersion {
		return
	}
	t.Verbs = normalizeWords(t.Verbs)
	t.Nouns = normalizeWords(t.Nouns)
	t.Version = TriggersVersion
}

// Migrate upgrades every nested blob of the room.
func (r *Room) Migrate() {
	r.Atmosphere.Migrate()
}

// Migrate upgrades every nested blob of the object.
func (o *GameObject) Migrate() {
	o.State.Migrate()
}

// Migrate upgrades every nested blob of the ability.
func (a *Ability) Migrate() {
	a.Triggers.Migrate()
	if a.Level < 1 {
		a.Level = 1
	}
}

func normalizeWords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
