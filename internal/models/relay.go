package models

import "time"

// RelayStatus is the controller's self-reported I/O snapshot, published as JSON on the data topic.
type RelayStatus struct {
	Relay1Input  bool      `json:"relay1_input"`
	Relay2Input  bool      `json:"relay2_input"`
	Relay3Input  bool      `json:"relay3_input"`
	Relay4Input  bool      `json:"relay4_input"`
	Relay1Output bool      `json:"relay1_output"`
	Relay2Output bool      `json:"relay2_output"`
	Relay3Output bool      `json:"relay3_output"`
	Relay4Output bool      `json:"relay4_output"`
	ReceivedAt   time.Time `json:"received_at"`
}
