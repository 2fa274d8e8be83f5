package voice

import "testing"

func TestClassifyAgent(t *testing.T) {
	tests := []struct {
		name  string
		agent string
		want  Vendor
	}{
		{
			name:  "edge browser string",
			agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51",
			want:  VendorEdge,
		},
		{
			name:  "chrome browser string",
			agent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			want:  VendorChrome,
		},
		{
			name:  "edg substring wins over chrome",
			agent: "chrome with Edg suffix",
			want:  VendorEdge,
		},
		{
			name:  "case insensitive",
			agent: "CHROME/99",
			want:  VendorChrome,
		},
		{
			name:  "plain service agent",
			agent: "wyoming-piper/1.5",
			want:  VendorGeneric,
		},
		{
			name:  "empty agent",
			agent: "",
			want:  VendorGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyAgent(tt.agent); got != tt.want {
				t.Errorf("ClassifyAgent(%q) = %v, want %v", tt.agent, got, tt.want)
			}
		})
	}
}

func TestVendorString(t *testing.T) {
	if VendorChrome.String() != "chrome" || VendorEdge.String() != "edge" || VendorGeneric.String() != "generic" {
		t.Errorf("unexpected vendor names: %v %v %v", VendorChrome, VendorEdge, VendorGeneric)
	}
}
