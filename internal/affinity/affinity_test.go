package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinCurrentThreadMatchesAvailability(t *testing.T) {
	err := PinCurrentThread(0)
	if Available() {
		assert.NoError(t, err)
	}
	runtime.UnlockOSThread()
}

func TestAvailableReflectsPlatform(t *testing.T) {
	if runtime.GOOS == "linux" {
		assert.True(t, Available())
	} else {
		assert.False(t, Available())
	}
}
