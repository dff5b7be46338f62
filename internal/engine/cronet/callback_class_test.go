package cronet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackClassBytes_NotEmpty(t *testing.T) {
	assert.NotEmpty(t, callbackClassBytes)
}
