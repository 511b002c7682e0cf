package lobby

import "fmt"

func errNoActiveRoom(clientID uint32) error {
	return fmt.Errorf("lobby: client %d has no active room", clientID)
}

func errClientNotConnected(clientID uint32) error {
	return fmt.Errorf("lobby: client %d is no longer connected", clientID)
}
