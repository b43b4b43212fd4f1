package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// BGPSessionStates returns the session state of every neighbor configured in
// CONFIG_DB BGP_NEIGHBOR, keyed by neighbor address.
//
// States come from STATE_DB BGP_NEIGHBOR_TABLE (published by bgpmon). Images
// without bgpmon leave that table empty; FRR is then asked directly with
// "show bgp summary json". Neighbors FRR does not know report "".
func (d *Device) BGPSessionStates(ctx context.Context) (map[string]string, error) {
	c, err := d.config()
	if err != nil {
		return nil, err
	}
	keys, err := c.TableKeys(ctx, "BGP_NEIGHBOR")
	if err != nil {
		return nil, fmt.Errorf("reading BGP_NEIGHBOR on %s: %w", d.profile.Name, err)
	}

	s, err := d.state()
	if err != nil {
		return nil, err
	}

	states := make(map[string]string, len(keys))
	anyFound := false
	for _, k := range keys {
		vrf, neighbor := splitNeighborKey(k)
		state, err := s.BGPNeighborState(ctx, vrf, neighbor)
		if err != nil {
			return nil, err
		}
		if state != "" {
			anyFound = true
		}
		states[neighbor] = state
	}
	if anyFound || len(keys) == 0 {
		return states, nil
	}

	output, err := d.Exec(ctx, "sudo vtysh -c 'show bgp summary json'")
	if err != nil {
		return nil, fmt.Errorf("vtysh on %s: %w", d.profile.Name, err)
	}
	frr, err := parseBGPSummaryJSON(output)
	if err != nil {
		return nil, fmt.Errorf("vtysh parse on %s: %w", d.profile.Name, err)
	}
	for neighbor := range states {
		states[neighbor] = frr[neighbor]
	}
	return states, nil
}

// splitNeighborKey splits "default|10.0.0.1" into VRF and address; a bare
// address has no VRF.
func splitNeighborKey(key string) (vrf, neighbor string) {
	if i := strings.LastIndex(key, "|"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

// parseBGPSummaryJSON collects peer states from all address families of
// {"ipv4Unicast": {"peers": {"10.1.0.0": {"state": "Established"}}}}.
func parseBGPSummaryJSON(output string) (map[string]string, error) {
	var summary map[string]json.RawMessage
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		return nil, err
	}
	peerStates := make(map[string]string)
	for _, afData := range summary {
		var af struct {
			Peers map[string]struct {
				State string `json:"state"`
			} `json:"peers"`
		}
		if json.Unmarshal(afData, &af) == nil {
			for ip, peer := range af.Peers {
				peerStates[ip] = peer.State
			}
		}
	}
	return peerStates, nil
}
