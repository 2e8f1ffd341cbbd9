package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateAt(t *testing.T) {
	topic := TruncateAt(".")

	assert.Equal(t, "temp", topic("temp.sensor1"))
	assert.Equal(t, "temp", topic("temp.sensor2"))
	assert.Equal(t, "cpu", topic("cpu.load.avg"))
	assert.Equal(t, "vibration", topic("vibration"))
	assert.Equal(t, "", topic(".hidden"))
	assert.Equal(t, "Temp", topic("Temp.x"))
}

func TestTruncateAtCustomSeparator(t *testing.T) {
	assert.Equal(t, "rack1", TruncateAt("/")("rack1/fan.speed"))
}
