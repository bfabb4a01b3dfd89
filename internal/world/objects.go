package world

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

var (
	ErrObjectNotFound  = errors.New("world: object not found")
	ErrNotTakeable     = errors.New("world: object cannot be taken")
	ErrAlreadyCarried  = errors.New("world: object already carried")
	ErrNotCarried      = errors.New("world: object not carried")
	ErrNotContainer    = errors.New("world: object is not a container")
	ErrContainerClosed = errors.New("world: container is closed")
	ErrNotClosable     = errors.New("world: object cannot be opened or closed")
	ErrLocked          = errors.New("world: object is locked")
	ErrContainsItself  = errors.New("world: object would end up inside itself")
)

// Objects moves game objects between rooms, containers and the inventory.
type Objects struct {
	store store.Objects
}

// NewObjects returns an Objects over s.
func NewObjects(s store.Objects) *Objects {
	return &Objects{store: s}
}

// Matches reports whether name refers to o by name or alias.
func Matches(o *models.GameObject, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if strings.ToLower(o.Name) == name {
		return true
	}
	for _, a := range o.Aliases {
		if strings.ToLower(a) == name {
			return true
		}
	}
	return strings.Contains(strings.ToLower(o.Name), name)
}

// Inventory lists the objects the player carries.
func (w *Objects) Inventory(ctx context.Context, storyID string) ([]models.GameObject, error) {
	all, err := w.store.ListObjects(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var out []models.GameObject
	for _, o := range all {
		if o.InInventory() {
			out = append(out, o)
		}
	}
	return out, nil
}

// InRoom lists the objects lying directly in roomID.
func (w *Objects) InRoom(ctx context.Context, storyID, roomID string) ([]models.GameObject, error) {
	all, err := w.store.ListObjects(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var out []models.GameObject
	for _, o := range all {
		if o.RoomID == roomID {
			out = append(out, o)
		}
	}
	return out, nil
}

// Reachable lists objects in the room, in the inventory and inside any open
// container among them, nested containers included.
func (w *Objects) Reachable(ctx context.Context, storyID, roomID string) ([]models.GameObject, error) {
	all, err := w.store.ListObjects(ctx, storyID)
	if err != nil {
		return nil, err
	}
	byContainer := make(map[string][]models.GameObject)
	var out []models.GameObject
	for _, o := range all {
		switch {
		case o.ContainerID != "":
			byContainer[o.ContainerID] = append(byContainer[o.ContainerID], o)
		case o.RoomID == roomID || o.InInventory():
			out = append(out, o)
		}
	}
	for i := 0; i < len(out); i++ {
		if out[i].Accessible() {
			out = append(out, byContainer[out[i].ID]...)
		}
	}
	return out, nil
}

// Find resolves name among the reachable objects. Carried objects win ties.
func (w *Objects) Find(ctx context.Context, storyID, roomID, name string) (*models.GameObject, error) {
	objs, err := w.Reachable(ctx, storyID, roomID)
	if err != nil {
		return nil, err
	}
	var found *models.GameObject
	for i := range objs {
		if !Matches(&objs[i], name) {
			continue
		}
		if found == nil || (objs[i].InInventory() && !found.InInventory()) {
			found = &objs[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrObjectNotFound)
	}
	return found, nil
}

// Take moves a reachable object into the inventory.
func (w *Objects) Take(ctx context.Context, storyID, roomID, name string) (*models.GameObject, error) {
	obj, err := w.Find(ctx, storyID, roomID, name)
	if err != nil {
		return nil, err
	}
	if obj.InInventory() {
		return obj, ErrAlreadyCarried
	}
	if !obj.Takeable {
		return obj, ErrNotTakeable
	}
	obj.MoveToInventory()
	return obj, w.store.SaveObject(ctx, obj)
}

// Drop puts a carried object down in roomID.
func (w *Objects) Drop(ctx context.Context, storyID, roomID, name string) (*models.GameObject, error) {
	obj, err := w.carried(ctx, storyID, name)
	if err != nil {
		return nil, err
	}
	obj.MoveToRoom(roomID)
	return obj, w.store.SaveObject(ctx, obj)
}

// Put places an object inside an open container.
func (w *Objects) Put(ctx context.Context, storyID, roomID, name, containerName string) (*models.GameObject, *models.GameObject, error) {
	container, err := w.Find(ctx, storyID, roomID, containerName)
	if err != nil {
		return nil, nil, err
	}
	if !container.Container {
		return nil, container, ErrNotContainer
	}
	if !container.Accessible() {
		return nil, container, ErrContainerClosed
	}
	obj, err := w.Find(ctx, storyID, roomID, name)
	if err != nil {
		return nil, container, err
	}
	if obj.ID == container.ID {
		return obj, container, ErrNotContainer
	}
	inside, err := w.within(ctx, container, obj.ID)
	if err != nil {
		return obj, container, err
	}
	if inside {
		return obj, container, ErrContainsItself
	}
	if !obj.InInventory() && !obj.Takeable {
		return obj, container, ErrNotTakeable
	}
	obj.MoveToContainer(container.ID)
	return obj, container, w.store.SaveObject(ctx, obj)
}

// within reports whether o is nested, at any depth, inside ancestorID.
func (w *Objects) within(ctx context.Context, o *models.GameObject, ancestorID string) (bool, error) {
	seen := map[string]bool{o.ID: true}
	for id := o.ContainerID; id != ""; {
		if id == ancestorID {
			return true, nil
		}
		if seen[id] {
			return false, fmt.Errorf("object %s: containment loop at %s", o.ID, id)
		}
		seen[id] = true
		parent, err := w.store.GetObject(ctx, id)
		if err != nil {
			return false, err
		}
		id = parent.ContainerID
	}
	return false, nil
}

// SetOpen opens or closes a closable object.
func (w *Objects) SetOpen(ctx context.Context, storyID, roomID, name string, open bool) (*models.GameObject, error) {
	obj, err := w.Find(ctx, storyID, roomID, name)
	if err != nil {
		return nil, err
	}
	if !obj.State.Closable {
		return obj, ErrNotClosable
	}
	if open && obj.State.Locked {
		return obj, ErrLocked
	}
	obj.State.Open = open
	return obj, w.store.SaveObject(ctx, obj)
}

// Lose takes an object away from the player. Story-critical objects are
// dropped in fallbackRoomID instead of being destroyed.
func (w *Objects) Lose(ctx context.Context, objectID, fallbackRoomID string) (*models.GameObject, error) {
	obj, err := w.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if obj.StoryCritical {
		obj.MoveToRoom(fallbackRoomID)
		return obj, w.store.SaveObject(ctx, obj)
	}
	return obj, w.store.DeleteObject(ctx, objectID)
}

func (w *Objects) carried(ctx context.Context, storyID, name string) (*models.GameObject, error) {
	inv, err := w.Inventory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	for i := range inv {
		if Matches(&inv[i], name) {
			return &inv[i], nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNotCarried)
}
