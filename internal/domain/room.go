package domain

// RoomID names a signaling broadcast group. Rooms have no other state of
// their own; membership lives in the room directory.
type RoomID string
