// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package packet

import (
	"errors"
	"strings"
	"testing"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_AllTypes(t *testing.T) {
	msgs := []Message{
		&CountdownSync{Stage: model.StageWaitingForBalancedTeams, SecondsToBalance: 5, Initial: true, TimeRemaining: 42, VotingEnabled: true, LeftWins: true},
		&ReservationRequest{Members: []model.ConnectionID{7, 8, 0xDEADBEEF}},
		&ReservationResult{Result: ReservationNoneNeeded, Secondary: true},
		&ReservationIdentify{Conn: 99},
		&GameHasStarted{},
		&JoinGame{Map: "skyline", Mode: "assault", Server: "10.0.0.1:64100"},
		&MoveSession{Target: "3f2a"},
		&VoteCandidates{Cursor: 513, LeftMap: "a", LeftMode: "tdm", RightMap: "b", RightMode: "ctf"},
		&GameEnded{},
		&RequestCountdownSync{},
		&DedicatedServerInfo{Address: "ded-3.example:64100"},
	}
	seen := map[Type]bool{}
	for _, m := range msgs {
		b, err := Encode(m)
		require.NoError(t, err, m.Type())
		got, err := Decode(b)
		require.NoError(t, err, m.Type())
		if diff := cmp.Diff(m, got); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", m.Type(), diff)
		}
		seen[m.Type()] = true
	}
	for ty := TypeCountdownSync; ty <= TypeDedicatedServerInfo; ty++ {
		assert.True(t, seen[ty], "type %s not covered", ty)
	}
}

func TestCountdownSync_ExactLayout(t *testing.T) {
	b, err := Encode(&CountdownSync{Stage: model.StageStarted, SecondsToBalance: 3, Initial: false, TimeRemaining: 10, VotingEnabled: true, VotingClosed: true, LeftWins: false})
	require.NoError(t, err)
	want := []byte{Magic, Version, byte(TypeCountdownSync), 7, 0, 2, 3, 0, 10, 1, 1, 0}
	assert.Equal(t, want, b)
}

func TestReservationRequest_ExactLayout(t *testing.T) {
	b, err := Encode(&ReservationRequest{Members: []model.ConnectionID{1, 0x01020304}})
	require.NoError(t, err)
	want := []byte{Magic, Version, byte(TypeReservationRequest), 9, 0, 2, 1, 0, 0, 0, 4, 3, 2, 1}
	assert.Equal(t, want, b)
}

func TestDecode_RejectsLengthMismatch(t *testing.T) {
	b, err := Encode(&ReservationIdentify{Conn: 5})
	require.NoError(t, err)

	_, err = Decode(append(append([]byte{}, b...), 0))
	assert.True(t, errors.Is(err, ErrTrailingBytes), err)

	_, err = Decode(b[:len(b)-1])
	assert.True(t, errors.Is(err, ErrShortBuffer), err)

	// Header claims more payload than the fields consume.
	padded := append([]byte{}, b...)
	padded = append(padded, 0)
	padded[3]++
	_, err = Decode(padded)
	assert.True(t, errors.Is(err, ErrTrailingBytes), err)

	// Header claims less payload than the fields need.
	short := append([]byte{}, b[:len(b)-1]...)
	short[3]--
	_, err = Decode(short)
	assert.True(t, errors.Is(err, ErrShortBuffer), err)
}

func TestDecode_HeaderErrors(t *testing.T) {
	_, err := Decode([]byte{Magic, Version})
	assert.ErrorIs(t, err, ErrShortBuffer)
	_, err = Decode([]byte{0x00, Version, 1, 0, 0})
	assert.ErrorIs(t, err, ErrBadMagic)
	_, err = Decode([]byte{Magic, 9, 1, 0, 0})
	assert.ErrorIs(t, err, ErrBadVersion)
	_, err = Decode([]byte{Magic, Version, 200, 0, 0})
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = Decode([]byte{Magic, Version, byte(TypeReservationResult), 2, 0, 1, 7})
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestEncode_RejectsLongString(t *testing.T) {
	_, err := Encode(&MoveSession{Target: model.SessionID(strings.Repeat("x", 256))})
	assert.ErrorIs(t, err, ErrTooLong)

	b, err := Encode(&MoveSession{Target: model.SessionID(strings.Repeat("x", 255))})
	require.NoError(t, err)
	assert.Len(t, b, HeaderSize+1+255)
}

func TestMemberData(t *testing.T) {
	in := model.MemberData{Team: 2, Rank: 31, Skill: 1500, Vote: model.VoteRight, Mute: model.MuteVoice, Flags: 4}
	b := EncodeMemberData(in)
	require.Len(t, b, memberDataSize)
	out, err := DecodeMemberData(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeMemberData(b[:3])
	assert.ErrorIs(t, err, ErrShortBuffer)
	_, err = DecodeMemberData(append(b, 0))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestHandledBy(t *testing.T) {
	assert.Equal(t, RoleHost, HandledBy(TypeReservationRequest))
	assert.Equal(t, RoleHost, HandledBy(TypeReservationIdentify))
	assert.Equal(t, RoleHost, HandledBy(TypeRequestCountdownSync))
	assert.Equal(t, RoleMember, HandledBy(TypeCountdownSync))
	assert.Equal(t, RoleMember, HandledBy(TypeMoveSession))
}
