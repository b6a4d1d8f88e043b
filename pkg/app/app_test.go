package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownError(t *testing.T) {
	app := &App{}

	msg, known := app.KnownError(errors.New(
		"cannot attach performance counters: perf_event_paranoid is 3; run as root or lower it"))
	assert.True(t, known)
	assert.Contains(t, msg, "perf_event_paranoid")

	_, known = app.KnownError(errors.New("something else entirely"))
	assert.False(t, known)
}
