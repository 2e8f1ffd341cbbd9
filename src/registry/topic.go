package registry

import (
	"strings"

	"capture-tool/src/models"
)

// TopicFunc derives the event topic that carries a signal's samples.
type TopicFunc func(signal models.SignalID) string

// TruncateAt keeps everything before the first sep. An identifier without
// sep is its own topic.
func TruncateAt(sep string) TopicFunc {
	return func(signal models.SignalID) string {
		if i := strings.Index(signal, sep); i >= 0 {
			return signal[:i]
		}
		return signal
	}
}

// CollisionPolicy decides what happens when two signals derive one topic.
type CollisionPolicy string

const (
	// CollisionShare subscribes both signals to the shared topic, so each
	// batch on it is drawn into every chart mapped there.
	CollisionShare CollisionPolicy = "share"

	// CollisionReject refuses the later signal.
	CollisionReject CollisionPolicy = "reject"
)
