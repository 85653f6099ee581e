package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Namespace separates public rooms from direct-message rooms.
type Namespace int

const (
	NamespaceRoom Namespace = iota
	NamespaceDirect
)

const (
	roomKeyPrefix   = "chat_"
	directKeyPrefix = "chat_dm_"
	// reservedPrefix is what a public room would need to collide with a direct key.
	reservedPrefix = "dm_"
)

func (n Namespace) String() string {
	switch n {
	case NamespaceRoom:
		return "room"
	case NamespaceDirect:
		return "direct"
	default:
		return fmt.Sprintf("namespace(%d)", int(n))
	}
}

// GroupKey identifies one broadcast domain.
type GroupKey string

// NewGroupKey derives the group key for room within ns.
func NewGroupKey(ns Namespace, room string) GroupKey {
	if ns == NamespaceDirect {
		return GroupKey(directKeyPrefix + room)
	}
	return GroupKey(roomKeyPrefix + room)
}

var roomPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateRoom checks a client-supplied room identifier.
func ValidateRoom(ns Namespace, room string, maxLen int) error {
	if room == "" {
		return fmt.Errorf("%w: room is required", ErrInvalidRoom)
	}
	if maxLen > 0 && len(room) > maxLen {
		return fmt.Errorf("%w: room exceeds %d characters", ErrInvalidRoom, maxLen)
	}
	if !roomPattern.MatchString(room) {
		return fmt.Errorf("%w: room may only contain letters, digits, '_', '.', '-'", ErrInvalidRoom)
	}
	if ns == NamespaceRoom && strings.HasPrefix(room, reservedPrefix) {
		return fmt.Errorf("%w: room prefix is reserved", ErrInvalidRoom)
	}
	return nil
}
