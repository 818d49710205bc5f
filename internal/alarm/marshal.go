// SPDX-License-Identifier: MIT

package alarm

import "encoding/json"

// marshalBestEffort encodes v to JSON, returning nil on any failure (a
// timer firing should never panic or error the bus just because its
// payload closure produced something unexpected).
func marshalBestEffort(v any) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
