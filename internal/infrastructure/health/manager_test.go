package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAllHealthy(t *testing.T) {
	m := NewManager(nil)
	m.Register("ingest", func() error { return nil })
	m.Register("state_store", func() error { return nil })

	status, healthy := m.Status()
	assert.True(t, healthy)
	assert.Equal(t, "healthy", status["ingest"])
	assert.Equal(t, "healthy", status["state_store"])
}

func TestStatusReportsFailure(t *testing.T) {
	m := NewManager(nil)
	m.Register("ingest", func() error { return errors.New("stream down") })
	m.Register("state_store", func() error { return nil })

	status, healthy := m.Status()
	assert.False(t, healthy)
	assert.Equal(t, "unhealthy: stream down", status["ingest"])
	assert.Equal(t, "healthy", status["state_store"])
}

func TestRegisterReplaces(t *testing.T) {
	m := NewManager(nil)
	m.Register("ingest", func() error { return errors.New("down") })
	m.Register("ingest", func() error { return nil })

	_, healthy := m.Status()
	assert.True(t, healthy)
}
