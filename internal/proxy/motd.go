package proxy

import (
	"bytes"
	"encoding/json"

	"mcredirect/internal/protocol"
)

// statusResponse mirrors the vanilla status-ping JSON shape, reused here
// for the synthesized (non-synced) MOTD response.
type statusResponse struct {
	Version     statusVersion     `json:"version"`
	Players     statusPlayers     `json:"players"`
	Description statusDescription `json:"description"`
	Favicon     string            `json:"favicon,omitempty"`
}

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type statusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type statusDescription struct {
	Text string `json:"text"`
}

// writeSynthesizedStatus sends a status_response built from motd_default
// without contacting any upstream.
func writeSynthesizedStatus(w interface{ Write([]byte) (int, error) }, protocolVersion int32, motd string) error {
	resp := statusResponse{
		Version:     statusVersion{Name: "mcredirect", Protocol: protocolVersion},
		Players:     statusPlayers{Max: 0, Online: 0},
		Description: statusDescription{Text: motd},
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err := protocol.WriteString(buf, string(body)); err != nil {
		return err
	}
	return protocol.WritePacket(w, protocol.PacketStatusResponse, buf.Bytes())
}
