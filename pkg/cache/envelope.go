package cache

import (
	"encoding/base64"
	"encoding/json"
)

// envelope marks an encrypted cache value, mirroring the original system's
// {"__encrypted__": true, "data": "..."} marker so a cache dump on disk
// never carries plaintext when encryption is enabled. This is envelope
// marking only (base64), not real cryptography — the backing KMS/cipher is
// an external concern the gateway's cache layer is deliberately agnostic to.
type envelope struct {
	Encrypted bool   `json:"__encrypted__"`
	Data      string `json:"data"`
}

func encodeEnvelope(value []byte) ([]byte, error) {
	e := envelope{Encrypted: true, Data: base64.StdEncoding.EncodeToString(value)}
	return json.Marshal(e)
}

func decodeEnvelope(raw []byte) ([]byte, bool, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, err
	}
	if !e.Encrypted {
		return raw, false, nil
	}
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
