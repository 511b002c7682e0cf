package protocol

import "strconv"

// HostMigrationFields are the six key/value entries the reference server
// packs into a 0x1bd payload when a room's host disconnects mid-game and a
// surviving member is promoted. The client only ever receives this fixed
// set, see EncodeHostMigration.
type HostMigrationFields struct {
	GameName    string   // room description, verbatim ("name"\t"password"\t[0|h]BUILD)
	MapName     string   // room info string (status|humans|ais|closed|_|_)
	MasterID    uint32   // new host's client ID
	Session     string   // decimal session id; see DESIGN.md open question on its uniqueness
	ClientIDs   []uint32 // surviving room members, host excluded, in room order
}

// EncodeHostMigration composes a 0x1bd packet into p, rewinding p to the
// start of its data section first; id1/id2 are both set to the new host's
// ID.
//
// The format is a length-prefixed key/value dictionary wrapped in a
// single-element array, because that's the only container type the
// client's generic settings-dictionary parser understands:
//
//	u32 total_length_following (backpatched once the rest is written)
//	u32 0                       separator
//	u32 1                       array count, always exactly one dict
//	u8  0                       separator
//	u32 n_entries               always 6 for this fixed key set
//	  <string or array entry> * n_entries
func EncodeHostMigration(p *Packet, fields HostMigrationFields) error {
	p.SeekToStart()
	p.Seek(4) // placeholder for total_length_following, backpatched below

	writes := []func() error{
		func() error { return p.WriteU32(0) },
		func() error { return p.WriteU32(1) },
		func() error { return p.WriteByte(0) },
		func() error { return p.WriteU32(6) },
	}
	for _, w := range writes {
		if err := w(); err != nil {
			return err
		}
	}

	if err := writeStringEntry(p, "gamename", fields.GameName); err != nil {
		return err
	}
	if err := writeStringEntry(p, "mapname", fields.MapName); err != nil {
		return err
	}
	if err := writeStringEntry(p, "master", decimal(fields.MasterID)); err != nil {
		return err
	}
	if err := writeStringEntry(p, "session", fields.Session); err != nil {
		return err
	}
	if err := writeStringEntry(p, "clients", decimal(uint32(len(fields.ClientIDs)))); err != nil {
		return err
	}
	if err := writeClientsListEntry(p, fields.ClientIDs); err != nil {
		return err
	}

	p.WriteHeader(CmdHostMigration, fields.MasterID, fields.MasterID)
	// Backpatch the placeholder left at the front of the data section:
	// everything that follows it, i.e. the just-measured size minus the
	// 4 bytes the placeholder itself occupies.
	return p.WriteU32(p.header.Size - 4)
}

func writeStringEntry(p *Packet, key, value string) error {
	if err := p.WriteString(key, LenInt); err != nil {
		return err
	}
	if err := p.WriteString(value, LenInt); err != nil {
		return err
	}
	return p.WriteU32(0)
}

// writeClientsListEntry writes the one array-valued entry the dictionary
// ever carries: "*" -> decimal client ID, one pair per surviving member.
func writeClientsListEntry(p *Packet, clientIDs []uint32) error {
	if err := p.WriteString("clientslist", LenInt); err != nil {
		return err
	}
	if err := p.WriteU32(1); err != nil {
		return err
	}
	if err := p.WriteByte(0); err != nil {
		return err
	}
	if err := p.WriteU32(uint32(len(clientIDs))); err != nil {
		return err
	}
	for _, id := range clientIDs {
		if err := p.WriteString("*", LenInt); err != nil {
			return err
		}
		if err := p.WriteString(decimal(id), LenInt); err != nil {
			return err
		}
	}
	return p.WriteU32(0)
}

func decimal(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
