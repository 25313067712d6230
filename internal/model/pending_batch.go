package model

import "encoding/json"

// PendingBatch is a not-yet-sent bulk send job saved by the frontend. The
// server stores it verbatim; only the CLI looks inside.
type PendingBatch = json.RawMessage
