package protocol

import "fmt"

// Command codes for the Cossacks 3 LAN lobby protocol. Names follow the
// client's own side of the conversation: "Req"/"Notify" pairs are grouped
// together so the dispatch table in internal/lobby reads top to bottom the
// same way this file does.
const (
	CmdRegistrationForm uint16 = 0x198 // no-op on a LAN server

	CmdLogin         uint16 = 0x19a
	CmdLoginAck      uint16 = 0x19b
	CmdNewPlayer     uint16 = 0x1a6 // broadcast announcing a freshly logged-in player
	CmdClientGone    uint16 = 0x1a7 // broadcast on disconnect

	CmdEmailProbe uint16 = 0x1a8
	CmdEmailAck   uint16 = 0x1a9

	CmdPeerInfoReq uint16 = 0x192
	CmdPeerInfoAck uint16 = 0x193

	CmdVersionEcho    uint16 = 0x1ad
	CmdVersionEchoAck uint16 = 0x1ae

	CmdSetOwnProps uint16 = 0x1b3

	CmdClientStatus    uint16 = 0x1ab
	CmdClientStatusAck uint16 = 0x1ac

	CmdCreateRoom   uint16 = 0x19c
	CmdRoomCreated  uint16 = 0x19d
	CmdJoinRoom     uint16 = 0x19e
	CmdPlayerJoined uint16 = 0x19f

	CmdLeaveRoom    uint16 = 0x1a0
	CmdPlayersLeft  uint16 = 0x1a1
	CmdStartGame    uint16 = 0x1a2
	CmdGameStarted  uint16 = 0x1a3

	CmdRoomUpdate    uint16 = 0x1aa
	CmdRoomUpdateAck uint16 = 0x1a5

	CmdKick      uint16 = 0x1b5
	CmdKickAck   uint16 = 0x1b6

	CmdHostMigration     uint16 = 0x1bd // dict payload delivered to the new host
	CmdHostMigrationDone uint16 = 0x1be // header-only nudge to remaining members

	// Pass-through commands: read nothing, re-tag (sometimes to the same
	// code) and route per the fan-out table in internal/lobby/dispatch.go.
	CmdRoomChat          uint16 = 0x032
	CmdGameDataToHostA   uint16 = 0x064
	CmdGameDataToHostB   uint16 = 0x065
	CmdGameDataEcho      uint16 = 0x066
	CmdLobbyChat         uint16 = 0x0c8
	CmdDirectMessage     uint16 = 0x0c9
	CmdPing              uint16 = 0x194
	CmdPingAck           uint16 = 0x195
	CmdRelay             uint16 = 0x196
	CmdRelayAck          uint16 = 0x197
	CmdBroadcastMisc     uint16 = 0x1af
	CmdVoiceData         uint16 = 0x1bb
	CmdVoiceDataAck      uint16 = 0x1bc
	CmdSimDataA          uint16 = 0x456
	CmdSimDataB          uint16 = 0x457
	CmdSimDataC          uint16 = 0x460
	CmdSimDataD          uint16 = 0x461
	CmdSimDataPropagated uint16 = 0x4b0

	// CmdUnused1b7 is received by the real client on some builds but the
	// reference server never handles it. Kept here only so the "unknown
	// command" debug log can print a name instead of a bare hex code.
	CmdUnused1b7 uint16 = 0x1b7
)

var cmdNames = map[uint16]string{
	CmdRegistrationForm:  "RegistrationForm",
	CmdLogin:             "Login",
	CmdLoginAck:          "LoginAck",
	CmdNewPlayer:         "NewPlayer",
	CmdClientGone:        "ClientGone",
	CmdEmailProbe:        "EmailProbe",
	CmdEmailAck:          "EmailAck",
	CmdPeerInfoReq:       "PeerInfoReq",
	CmdPeerInfoAck:       "PeerInfoAck",
	CmdVersionEcho:       "VersionEcho",
	CmdVersionEchoAck:    "VersionEchoAck",
	CmdSetOwnProps:       "SetOwnProps",
	CmdClientStatus:      "ClientStatus",
	CmdClientStatusAck:   "ClientStatusAck",
	CmdCreateRoom:        "CreateRoom",
	CmdRoomCreated:       "RoomCreated",
	CmdJoinRoom:          "JoinRoom",
	CmdPlayerJoined:      "PlayerJoined",
	CmdLeaveRoom:         "LeaveRoom",
	CmdPlayersLeft:       "PlayersLeft",
	CmdStartGame:         "StartGame",
	CmdGameStarted:       "GameStarted",
	CmdRoomUpdate:        "RoomUpdate",
	CmdRoomUpdateAck:     "RoomUpdateAck",
	CmdKick:              "Kick",
	CmdKickAck:           "KickAck",
	CmdHostMigration:     "HostMigration",
	CmdHostMigrationDone: "HostMigrationDone",
	CmdRoomChat:          "RoomChat",
	CmdGameDataToHostA:   "GameDataToHostA",
	CmdGameDataToHostB:   "GameDataToHostB",
	CmdGameDataEcho:      "GameDataEcho",
	CmdLobbyChat:         "LobbyChat",
	CmdDirectMessage:     "DirectMessage",
	CmdPing:              "Ping",
	CmdPingAck:           "PingAck",
	CmdRelay:             "Relay",
	CmdRelayAck:          "RelayAck",
	CmdBroadcastMisc:     "BroadcastMisc",
	CmdVoiceData:         "VoiceData",
	CmdVoiceDataAck:      "VoiceDataAck",
	CmdSimDataA:          "SimDataA",
	CmdSimDataB:          "SimDataB",
	CmdSimDataC:          "SimDataC",
	CmdSimDataD:          "SimDataD",
	CmdSimDataPropagated: "SimDataPropagated",
	CmdUnused1b7:         "Unused1b7",
}

// CmdName returns a human-readable name for cmd, or its hex code if unknown.
// Used exclusively in debug logging, never in protocol decisions.
func CmdName(cmd uint16) string {
	if name, ok := cmdNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("%#03x", cmd)
}
