package player_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/player"
)

func TestNormalizeName(t *testing.T) {
	is := is.New(t)

	cases := []struct {
		in, want string
	}{
		{"ab", "ab__"},
		{"goodname", "goodname"},
		{"this-name-is-way-too-long", "this-name-is-way"},
		{"bad name!", "bad_name_"},
		{"", "____"},
	}
	for _, tc := range cases {
		is.Equal(player.NormalizeName(tc.in), tc.want)
	}
}

func TestNewPlayerDefaults(t *testing.T) {
	is := is.New(t)

	pl := player.New(7, "host", "1.0", "1")
	is.Equal(pl.ID, uint32(7))
	is.Equal(pl.Status, player.StatusLobby)
	is.Equal(pl.Props, player.DefaultProps)
	is.True(!pl.InRoom())
}

func TestJoinAndLeaveRoom(t *testing.T) {
	is := is.New(t)

	host := player.New(1, "host", "1", "1")
	member := player.New(2, "member", "1", "1")

	host.JoinRoom(1)
	is.Equal(host.Status, player.StatusRoomHost)
	is.True(host.IsHost(1))

	member.JoinRoom(1)
	is.Equal(member.Status, player.StatusRoomMember)
	is.True(!member.IsHost(1))

	member.LeaveRoom()
	is.Equal(member.Status, player.StatusLobby)
	is.True(!member.InRoom())
}
