package turn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tatianab/text-engine/internal/cache"
	"github.com/tatianab/text-engine/internal/command"
	"github.com/tatianab/text-engine/internal/engine"
	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/personality"
	"github.com/tatianab/text-engine/internal/skill"
	"github.com/tatianab/text-engine/internal/world"
)

const helpText = `Movement: north, south, east, west, up, down (or n, s, e, w, u, d).
Looking: look, search, examine <thing>.
Objects: take, drop, open, close, put <thing> in <container>, use <thing> [on <thing>].
People: talk to <someone>, ask <someone> about <topic>.
Travel: enter <portal or vehicle>, travel to <place>, go back, disembark.
Other: inventory, skills, status, wait, help.
Anything else you type is attempted as an action.`

// execute dispatches the interpreted command. Errors returned here are
// failures of the world state; things the player cannot do are narrated.
func (o *Orchestrator) execute(ctx context.Context, ts *turnState) error {
	switch ts.cmd.Type {
	case command.Help:
		ts.say(true, "%s", helpText)
		return nil
	case command.Inventory:
		return o.inventory(ctx, ts)
	case command.Skills:
		return o.listSkills(ctx, ts)
	case command.Status:
		return o.status(ctx, ts)
	case command.Wait:
		ts.say(true, "Time passes.")
		return nil
	case command.Look:
		return o.look(ctx, ts)
	case command.Search:
		return o.search(ctx, ts)
	case command.Move:
		return o.move(ctx, ts)
	case command.Enter:
		return o.enter(ctx, ts)
	case command.Travel:
		return o.travel(ctx, ts)
	case command.GoBack:
		return o.goBack(ctx, ts)
	case command.Disembark:
		return o.disembark(ctx, ts)
	case command.Examine:
		return o.examine(ctx, ts)
	case command.Take:
		return o.take(ctx, ts)
	case command.Drop:
		return o.drop(ctx, ts)
	case command.Put:
		return o.put(ctx, ts)
	case command.Open:
		return o.setOpen(ctx, ts, true)
	case command.Close:
		return o.setOpen(ctx, ts, false)
	case command.Talk:
		return o.talk(ctx, ts)
	case command.Ask:
		return o.ask(ctx, ts)
	case command.Use:
		return o.use(ctx, ts)
	default:
		return o.freeform(ctx, ts)
	}
}

func (o *Orchestrator) inventory(ctx context.Context, ts *turnState) error {
	inv, err := o.objects.Inventory(ctx, ts.storyID)
	if err != nil {
		return err
	}
	if len(inv) == 0 {
		ts.say(true, "You are empty-handed.")
		return nil
	}
	ts.say(true, "You are carrying: %s.", strings.Join(objectNames(inv), ", "))
	return nil
}

func (o *Orchestrator) listSkills(ctx context.Context, ts *turnState) error {
	abilities, err := o.skills.List(ctx, ts.storyID)
	if err != nil {
		return err
	}
	if len(abilities) == 0 {
		ts.say(true, "You have not practised any skills yet.")
		return nil
	}
	sort.Slice(abilities, func(i, j int) bool { return abilities[i].Name < abilities[j].Name })
	lines := make([]string, len(abilities))
	for i, a := range abilities {
		lines[i] = fmt.Sprintf("%s: level %.2f, mastery %d%% (%d uses)", a.Name, a.Level, a.Mastery(), a.Uses)
	}
	ts.say(true, "%s", strings.Join(lines, "\n"))
	return nil
}

func (o *Orchestrator) status(ctx context.Context, ts *turnState) error {
	p, err := o.personality.Get(ctx, ts.storyID)
	if err != nil {
		return err
	}
	ts.say(true, "Turn %d. Score %d. Health %d.\n%s", ts.turn, ts.player.Score, ts.player.Health, personality.Describe(p))
	return nil
}

func (o *Orchestrator) look(ctx context.Context, ts *turnState) error {
	text, err := o.describeRoom(ctx, ts, ts.room, true)
	if err != nil {
		return err
	}
	ts.say(true, "%s", text)
	return nil
}

// describeRoom renders the room with its objects, visible exits, open
// portals and docked vehicles.
func (o *Orchestrator) describeRoom(ctx context.Context, ts *turnState, room *models.Room, long bool) (string, error) {
	var b strings.Builder
	b.WriteString(room.Name)
	b.WriteString("\n")
	b.WriteString(room.Describe(long))

	objs, err := o.objects.InRoom(ctx, ts.storyID, room.ID)
	if err != nil {
		return "", err
	}
	if len(objs) > 0 {
		fmt.Fprintf(&b, "\nYou see: %s.", strings.Join(objectNames(objs), ", "))
	}

	var exits []string
	for _, d := range models.Directions {
		if room.ExitVisible(d) {
			exits = append(exits, string(d))
		}
	}
	if len(exits) > 0 {
		fmt.Fprintf(&b, "\nExits: %s.", strings.Join(exits, ", "))
	} else if room.Vehicle == nil {
		b.WriteString("\nThere are no obvious exits.")
	}

	for _, p := range room.Portals {
		if !p.Expired(ts.turn) {
			fmt.Fprintf(&b, "\nA %s shimmers here.", p.Name)
		}
	}

	vehicles, err := o.graph.VehiclesAt(ctx, ts.storyID, room.ID)
	if err != nil {
		return "", err
	}
	for _, v := range vehicles {
		fmt.Fprintf(&b, "\nThe %s waits here.", v.Name)
	}

	if room.Vehicle != nil {
		if dock, err := o.graph.Dock(ctx, room); err == nil {
			fmt.Fprintf(&b, "\nYou are aboard, docked at %s.", dock.Name)
		}
		if dests, err := o.graph.Destinations(ctx, room); err == nil && len(dests) > 0 {
			names := make([]string, len(dests))
			for i, d := range dests {
				names[i] = d.Name
			}
			fmt.Fprintf(&b, "\nDestinations: %s.", strings.Join(names, ", "))
		}
	}
	return b.String(), nil
}

// enterRoom moves the player into dest and narrates the arrival. The long
// description is used on the first visit only.
func (o *Orchestrator) enterRoom(ctx context.Context, ts *turnState, dest *models.Room, prefix string) error {
	first := ts.player.Visit(dest.ID)
	ts.player.RoomID = dest.ID
	dest.VisitCount++
	if err := o.store.UpdateRoom(ctx, dest); err != nil {
		return fmt.Errorf("update room %s: %w", dest.ID, err)
	}
	ts.room = dest
	text, err := o.describeRoom(ctx, ts, dest, first)
	if err != nil {
		return err
	}
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	ts.say(true, "%s", text)
	return nil
}

func (o *Orchestrator) search(ctx context.Context, ts *turnState) error {
	var hidden []models.Direction
	for _, d := range models.Directions {
		if _, ok := ts.room.Neighbor(d); ok && ts.room.IsHidden(d) && !ts.room.IsDiscovered(d) {
			hidden = append(hidden, d)
		}
	}
	a, err := o.skills.Get(ctx, ts.storyID, "Perception")
	if err != nil {
		return err
	}
	res, err := o.skills.Check(ctx, a, o.tuning.SearchDifficulty)
	if err != nil {
		return err
	}
	line := checkLine(res)
	if !res.Success || len(hidden) == 0 {
		ts.say(false, "You search carefully but find nothing new.\n%s", line)
		return nil
	}
	var found []string
	for _, d := range hidden {
		ok, err := o.graph.DiscoverExit(ctx, ts.room, d)
		if err != nil {
			return err
		}
		if ok {
			found = append(found, string(d))
		}
	}
	ts.say(true, "You find a hidden way leading %s.\n%s", strings.Join(found, " and "), line)
	return nil
}

func (o *Orchestrator) move(ctx context.Context, ts *turnState) error {
	d, ok := models.ParseDirection(ts.cmd.Target)
	if !ok {
		ts.say(false, "That is not a direction you know.")
		return nil
	}
	var expander world.Expander
	if o.expand && o.gen != nil {
		expander = engine.Expander{Gen: o.gen}
		ts.report(StageGenerating, "room")
	}
	dest, created, err := o.graph.Move(ctx, ts.room, d, expander)
	switch {
	case errors.Is(err, world.ErrNoExit), errors.Is(err, world.ErrInvalidDirection):
		ts.say(false, "You can't go that way.")
		return nil
	case err != nil:
		return err
	}
	if created {
		o.log.Info("world expanded", "story", ts.storyID, "room", dest.ID, "coord", dest.Coord.String())
	}
	return o.enterRoom(ctx, ts, dest, "")
}

func (o *Orchestrator) enter(ctx context.Context, ts *turnState) error {
	if p, ok := world.FindPortal(ts.room, ts.cmd.Target, ts.turn); ok {
		dest, err := o.store.GetRoom(ctx, p.TargetRoomID)
		if err != nil {
			return fmt.Errorf("portal %s: %w", p.ID, err)
		}
		return o.enterRoom(ctx, ts, dest, fmt.Sprintf("You step through the %s.", p.Name))
	}
	vehicles, err := o.graph.VehiclesAt(ctx, ts.storyID, ts.room.ID)
	if err != nil {
		return err
	}
	target := strings.ToLower(ts.cmd.Target)
	for i := range vehicles {
		if v := &vehicles[i]; strings.Contains(strings.ToLower(v.Name), target) || v.ID == target {
			return o.enterRoom(ctx, ts, v, fmt.Sprintf("You climb aboard the %s.", v.Name))
		}
	}
	ts.say(false, "There is no %s here to enter.", ts.cmd.Target)
	return nil
}

func (o *Orchestrator) travel(ctx context.Context, ts *turnState) error {
	vehicle := ts.room
	if vehicle.Vehicle == nil {
		ts.say(false, "You need to be aboard something to travel.")
		return nil
	}
	dest, err := o.graph.ResolveDestination(ctx, vehicle, ts.cmd.Target)
	if errors.Is(err, world.ErrUnknownDest) {
		ts.say(false, "The %s cannot take you to %s.", vehicle.Name, ts.cmd.Target)
		return nil
	} else if err != nil {
		return err
	}
	if dest.ID == vehicle.Vehicle.DockedAt {
		ts.say(false, "The %s is already at %s.", vehicle.Name, dest.Name)
		return nil
	}
	if err := o.graph.Travel(ctx, vehicle, dest); err != nil {
		return err
	}
	ts.say(true, "The %s carries you to %s. You can disembark here.", vehicle.Name, dest.Name)
	return nil
}

func (o *Orchestrator) goBack(ctx context.Context, ts *turnState) error {
	vehicle := ts.room
	if vehicle.Vehicle == nil {
		ts.say(false, "There is nothing here to take you back.")
		return nil
	}
	dest, err := o.graph.GoBack(ctx, vehicle)
	if errors.Is(err, world.ErrNoPreviousDock) {
		ts.say(false, "The %s has nowhere to go back to.", vehicle.Name)
		return nil
	} else if err != nil {
		return err
	}
	ts.say(true, "The %s returns you to %s.", vehicle.Name, dest.Name)
	return nil
}

func (o *Orchestrator) disembark(ctx context.Context, ts *turnState) error {
	if ts.room.Vehicle == nil {
		ts.say(false, "You are not aboard anything.")
		return nil
	}
	dock, err := o.graph.Dock(ctx, ts.room)
	if err != nil {
		return err
	}
	return o.enterRoom(ctx, ts, dock, fmt.Sprintf("You step off the %s.", ts.room.Name))
}

func (o *Orchestrator) examine(ctx context.Context, ts *turnState) error {
	switch ts.cmd.Target {
	case "room", "around", "here":
		return o.look(ctx, ts)
	}
	obj, err := o.objects.Find(ctx, ts.storyID, ts.room.ID, ts.cmd.Target)
	if err != nil && !errors.Is(err, world.ErrObjectNotFound) {
		return err
	}
	if obj != nil && obj.Description != "" {
		text := obj.Description
		if obj.State.Closable {
			if obj.State.Open {
				text += " It is open."
			} else {
				text += " It is closed."
			}
		}
		if obj.Accessible() {
			contents, err := o.contents(ctx, ts.storyID, obj.ID)
			if err != nil {
				return err
			}
			if len(contents) > 0 {
				text += fmt.Sprintf(" Inside: %s.", strings.Join(contents, ", "))
			}
		}
		ts.say(true, "%s", text)
		return nil
	}
	req := &engine.Request{Kind: engine.KindExamine, Object: obj, Input: ts.input}
	if obj == nil {
		req.Object = &models.GameObject{Name: ts.cmd.Target}
	}
	o.narrate(ctx, ts, cache.Exact(ts.storyID, ts.room.ID, ts.cmd), req)
	return nil
}

func (o *Orchestrator) contents(ctx context.Context, storyID, containerID string) ([]string, error) {
	all, err := o.store.ListObjects(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, obj := range all {
		if obj.ContainerID == containerID {
			names = append(names, obj.Name)
		}
	}
	return names, nil
}

func (o *Orchestrator) take(ctx context.Context, ts *turnState) error {
	obj, err := o.objects.Take(ctx, ts.storyID, ts.room.ID, ts.cmd.Target)
	switch {
	case err == nil:
		ts.say(true, "Taken: %s.", obj.Name)
	case errors.Is(err, world.ErrObjectNotFound):
		ts.say(false, "You don't see any %s here.", ts.cmd.Target)
	case errors.Is(err, world.ErrAlreadyCarried):
		ts.say(false, "You already have the %s.", obj.Name)
	case errors.Is(err, world.ErrNotTakeable):
		ts.say(false, "You can't take the %s.", obj.Name)
	default:
		return err
	}
	return nil
}

func (o *Orchestrator) drop(ctx context.Context, ts *turnState) error {
	obj, err := o.objects.Drop(ctx, ts.storyID, ts.room.ID, ts.cmd.Target)
	switch {
	case err == nil:
		ts.say(true, "Dropped: %s.", obj.Name)
	case errors.Is(err, world.ErrNotCarried):
		ts.say(false, "You aren't carrying any %s.", ts.cmd.Target)
	default:
		return err
	}
	return nil
}

func (o *Orchestrator) put(ctx context.Context, ts *turnState) error {
	obj, container, err := o.objects.Put(ctx, ts.storyID, ts.room.ID, ts.cmd.Target, ts.cmd.Modifier)
	switch {
	case err == nil:
		ts.say(true, "You put the %s in the %s.", obj.Name, container.Name)
	case errors.Is(err, world.ErrObjectNotFound):
		ts.say(false, "You don't see that here.")
	case errors.Is(err, world.ErrNotContainer):
		ts.say(false, "You can't put things in the %s.", container.Name)
	case errors.Is(err, world.ErrContainerClosed):
		ts.say(false, "The %s is closed.", container.Name)
	case errors.Is(err, world.ErrNotTakeable):
		ts.say(false, "You can't move the %s.", obj.Name)
	default:
		return err
	}
	return nil
}

func (o *Orchestrator) setOpen(ctx context.Context, ts *turnState, open bool) error {
	obj, err := o.objects.SetOpen(ctx, ts.storyID, ts.room.ID, ts.cmd.Target, open)
	switch {
	case err == nil:
	case errors.Is(err, world.ErrObjectNotFound):
		ts.say(false, "You don't see any %s here.", ts.cmd.Target)
		return nil
	case errors.Is(err, world.ErrNotClosable):
		ts.say(false, "The %s can't be opened or closed.", obj.Name)
		return nil
	case errors.Is(err, world.ErrLocked):
		ts.say(false, "The %s is locked.", obj.Name)
		return nil
	default:
		return err
	}
	if !open {
		ts.say(true, "You close the %s.", obj.Name)
		return nil
	}
	contents, err := o.contents(ctx, ts.storyID, obj.ID)
	if err != nil {
		return err
	}
	if len(contents) == 0 {
		ts.say(true, "You open the %s. It is empty.", obj.Name)
	} else {
		ts.say(true, "You open the %s, revealing: %s.", obj.Name, strings.Join(contents, ", "))
	}
	return nil
}

func (o *Orchestrator) talk(ctx context.Context, ts *turnState) error {
	req := &engine.Request{Kind: engine.KindTalk, Character: ts.cmd.Target, Input: ts.input}
	o.narrate(ctx, ts, cache.Exact(ts.storyID, ts.room.ID, ts.cmd), req)
	return nil
}

func (o *Orchestrator) ask(ctx context.Context, ts *turnState) error {
	req := &engine.Request{Kind: engine.KindTalk, Character: ts.cmd.Target, Topic: ts.cmd.Modifier, Input: ts.input}
	o.narrate(ctx, ts, cache.Semantic(ts.storyID, ts.room.ID, ts.input), req)
	return nil
}

func (o *Orchestrator) use(ctx context.Context, ts *turnState) error {
	obj, err := o.objects.Find(ctx, ts.storyID, ts.room.ID, ts.cmd.Target)
	if errors.Is(err, world.ErrObjectNotFound) {
		ts.say(false, "You don't have any %s to use.", ts.cmd.Target)
		return nil
	} else if err != nil {
		return err
	}
	if handled, err := o.trySkill(ctx, ts); handled || err != nil {
		return err
	}
	req := &engine.Request{Kind: engine.KindUse, Object: obj, Topic: ts.cmd.Modifier, Input: ts.input}
	o.narrate(ctx, ts, cache.Exact(ts.storyID, ts.room.ID, ts.cmd), req)
	return nil
}

func (o *Orchestrator) freeform(ctx context.Context, ts *turnState) error {
	if handled, err := o.trySkill(ctx, ts); handled || err != nil {
		return err
	}
	req := &engine.Request{Kind: engine.KindFreeform, Input: ts.input}
	o.narrate(ctx, ts, cache.Semantic(ts.storyID, ts.room.ID, ts.input), req)
	return nil
}

// trySkill routes the raw input through the skill engine. It reports
// whether an ability claimed the input.
func (o *Orchestrator) trySkill(ctx context.Context, ts *turnState) (bool, error) {
	m, ok, err := o.skills.Match(ctx, ts.storyID, ts.input)
	if err != nil || !ok {
		return false, err
	}
	difficulty := o.tuning.DefaultDifficulty
	setup := ""
	success, failure := "You manage it.", "It doesn't work out."
	if resp, ok := o.generate(ctx, ts, &engine.Request{Kind: engine.KindSkill, Ability: m.Ability.Name, Input: ts.input}); ok {
		if resp.SkillCheckDifficulty != nil {
			difficulty = *resp.SkillCheckDifficulty
		}
		setup = resp.NarrativeText
		if resp.SuccessNarrative != "" {
			success = resp.SuccessNarrative
		}
		if resp.FailureNarrative != "" {
			failure = resp.FailureNarrative
		}
		ts.signal = resp.PersonalitySignal
	}
	res, err := o.skills.Check(ctx, m.Ability, difficulty)
	if err != nil {
		return true, err
	}
	outcome := failure
	if res.Success {
		outcome = success
	}
	ts.say(res.Success, "%s", joinNonEmpty([]string{setup, outcome + "\n" + checkLine(res)}))
	return true, nil
}

func checkLine(res skill.Result) string {
	verdict := "failure"
	switch {
	case res.Forced && res.Success:
		verdict = "critical success"
	case res.Forced:
		verdict = "critical failure"
	case res.Success:
		verdict = "success"
	}
	return fmt.Sprintf("[%s: rolled %d + %.2f = %.2f vs %d, %s. Level %.2f, mastery %d%%]",
		res.Ability.Name, res.Roll, res.Level, res.Total, res.Difficulty, verdict, res.Ability.Level, res.Mastery)
}

// generate asks the generator for one response. It reports false when there
// is no generator or it failed, in which case the caller falls back.
func (o *Orchestrator) generate(ctx context.Context, ts *turnState, req *engine.Request) (*engine.Response, bool) {
	if o.gen == nil {
		return nil, false
	}
	ts.report(StageGenerating, string(req.Kind))
	req.StoryID = ts.storyID
	if req.Room == nil {
		req.Room = ts.room
	}
	if inv, err := o.objects.Inventory(ctx, ts.storyID); err == nil {
		req.Inventory = objectNames(inv)
	}
	if hist, err := o.transcript.Recent(ctx, ts.storyID, o.tuning.HistoryLines); err == nil {
		req.History = hist
	}
	resp, err := o.gen.Generate(ctx, req)
	if err != nil || resp == nil {
		o.log.Warn("generator unavailable", "story", ts.storyID, "kind", string(req.Kind), "err", err)
		return nil, false
	}
	return resp, true
}

// narrate answers from the response cache, calling the generator on a
// miss. Fallback narratives are never cached.
func (o *Orchestrator) narrate(ctx context.Context, ts *turnState, key cache.Key, req *engine.Request) {
	text, hit, err := o.cache.Resolve(ctx, key, func(ctx context.Context) (string, bool, error) {
		resp, ok := o.generate(ctx, ts, req)
		if !ok || strings.TrimSpace(resp.NarrativeText) == "" {
			return engine.FallbackNarrative, false, nil
		}
		ts.signal = resp.PersonalitySignal
		return resp.NarrativeText, true, nil
	})
	if err != nil {
		o.log.Warn("response cache unavailable", "story", ts.storyID, "err", err)
		text = engine.FallbackNarrative
	}
	ts.cached = hit
	ts.say(text != engine.FallbackNarrative, "%s", text)
}

func objectNames(objs []models.GameObject) []string {
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.Name
	}
	return names
}
