package nodeid

import (
	"fmt"
	"strconv"
	"strings"
)

// levels lists the indexed segments that may follow the flow name, in order.
var levels = []string{stepSegment, nodeSegment, pipelineSegment}

func isValidSegmentName(name string) bool {
	if name == "" || name == "-" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// Parse reads an address from its canonical string form: a flow name
// followed by step[i], node[i] and pipeline[i] segments, in that order.
func Parse(rawID string) (*Address, error) {
	if rawID == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}
	parts := strings.Split(rawID, ".")
	if !isValidSegmentName(parts[0]) {
		return nil, fmt.Errorf("invalid flow name %q", parts[0])
	}
	if len(parts)-1 > len(levels) {
		return nil, fmt.Errorf("identifier %q is deeper than a pipeline", rawID)
	}

	addr := Flow(parts[0])
	for i, part := range parts[1:] {
		name, index, err := parseIndexed(part)
		if err != nil {
			return nil, err
		}
		if name != levels[i] {
			return nil, fmt.Errorf("segment %d of %q must be %s[i], got %q", i+1, rawID, levels[i], part)
		}
		addr = addr.Child(name, index)
	}
	return addr, nil
}

// parseIndexed splits `name[index]`.
func parseIndexed(part string) (string, int, error) {
	name, rest, ok := strings.Cut(part, "[")
	if !ok || !strings.HasSuffix(rest, "]") {
		return "", 0, fmt.Errorf("invalid path segment format: %q", part)
	}
	index, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("invalid segment index in %q", part)
	}
	return name, index, nil
}
