package device

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitNeighborKey(t *testing.T) {
	tests := []struct {
		key      string
		vrf      string
		neighbor string
	}{
		{"10.0.0.57", "", "10.0.0.57"},
		{"default|10.0.0.57", "default", "10.0.0.57"},
		{"Vrf_blue|fc00::72", "Vrf_blue", "fc00::72"},
	}
	for _, tt := range tests {
		vrf, neighbor := splitNeighborKey(tt.key)
		if vrf != tt.vrf || neighbor != tt.neighbor {
			t.Errorf("splitNeighborKey(%q) = (%q, %q), want (%q, %q)", tt.key, vrf, neighbor, tt.vrf, tt.neighbor)
		}
	}
}

func TestParseBGPSummaryJSON(t *testing.T) {
	output := `{
  "ipv4Unicast": {
    "routerId": "10.1.0.32",
    "peers": {
      "10.0.0.57": {"state": "Established", "pfxRcd": 6400},
      "10.0.0.59": {"state": "Active"}
    }
  },
  "ipv6Unicast": {
    "peers": {
      "fc00::72": {"state": "Established"}
    }
  }
}`
	got, err := parseBGPSummaryJSON(output)
	if err != nil {
		t.Fatalf("parseBGPSummaryJSON: %v", err)
	}
	want := map[string]string{
		"10.0.0.57": "Established",
		"10.0.0.59": "Active",
		"fc00::72":  "Established",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("peer states mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBGPSummaryJSON_Invalid(t *testing.T) {
	if _, err := parseBGPSummaryJSON("% BGP instance not found"); err == nil {
		t.Error("expected error for non-JSON output")
	}
}
