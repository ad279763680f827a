package rooms

import (
	"context"
	"errors"
	"testing"
)

type fakeMembershipStore struct {
	joined map[string][]string
	err    error
}

func (f *fakeMembershipStore) JoinedRooms(ctx context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.joined[userID], nil
}

func (f *fakeMembershipStore) IsJoined(ctx context.Context, roomID, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.joined[userID] {
		if r == roomID {
			return true, nil
		}
	}
	return false, nil
}

func TestCheckJoinedRoom(t *testing.T) {
	svc := NewService(&fakeMembershipStore{joined: map[string][]string{
		"@alice:test": {"!a:test"},
	}})

	if err := svc.CheckJoinedRoom(context.Background(), "!a:test", "@alice:test"); err != nil {
		t.Errorf("joined user rejected: %v", err)
	}

	err := svc.CheckJoinedRoom(context.Background(), "!a:test", "@eve:test")
	if !errors.Is(err, ErrNotInRoom) {
		t.Errorf("expected ErrNotInRoom, got %v", err)
	}
}

func TestCheckJoinedRoom_StoreError(t *testing.T) {
	storeErr := errors.New("db down")
	svc := NewService(&fakeMembershipStore{err: storeErr})

	err := svc.CheckJoinedRoom(context.Background(), "!a:test", "@alice:test")
	if !errors.Is(err, storeErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, ErrNotInRoom) {
		t.Error("store failure must not read as an authorization denial")
	}
}

func TestGetJoinedRoomsForUser(t *testing.T) {
	svc := NewService(&fakeMembershipStore{joined: map[string][]string{
		"@alice:test": {"!a:test", "!b:test"},
	}})

	rooms, err := svc.GetJoinedRoomsForUser(context.Background(), "@alice:test")
	if err != nil {
		t.Fatalf("GetJoinedRoomsForUser failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Errorf("expected 2 rooms, got %v", rooms)
	}
}
