package storage

import (
	"fmt"

	"github.com/mama165/sdk-go/database"
)

// MessageMapper renders a Badger record for the debug inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	message, err := UnmarshalMessage(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Detail = fmt.Sprintf("#%d %s: %s (%d reactions)",
		message.ID, message.SenderKey, message.Text, len(message.Reactions))
	return row
}
