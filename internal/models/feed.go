package models

// Feed operations.
const (
	FeedInsert = "insert"
	FeedUpdate = "update"
)

// FeedEvent is a change notification for the readings store.
type FeedEvent struct {
	Op      string        `json:"op"`
	Reading SensorReading `json:"reading"`
}
