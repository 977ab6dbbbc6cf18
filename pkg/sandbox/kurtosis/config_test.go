package kurtosis

import (
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotEmpty(t, config.Name)
	assert.Positive(t, config.Participants)
	assert.Positive(t, config.Timeout)
}

func TestParticipants(t *testing.T) {
	t.Run("single participant", func(t *testing.T) {
		p := NewProvider(testLogger(), &Config{Participants: 1})

		participants := p.participants()
		require.Len(t, participants, 1)
		assert.Equal(t, 1, participants[0].Count)
	})

	t.Run("multiple participants", func(t *testing.T) {
		p := NewProvider(testLogger(), &Config{Participants: 4})

		total := 0
		for _, participant := range p.participants() {
			total += participant.Count
		}

		assert.Equal(t, 4, total)
	})

	t.Run("zero defaults to one", func(t *testing.T) {
		p := NewProvider(testLogger(), &Config{})

		total := 0
		for _, participant := range p.participants() {
			total += participant.Count
		}

		assert.Equal(t, 1, total)
	})
}

func TestGetNATExitIP(t *testing.T) {
	ip := GetNATExitIP()
	require.NotEmpty(t, ip)
	assert.NotNil(t, net.ParseIP(ip))
}

func TestIsEnclaveGone(t *testing.T) {
	assert.True(t, isEnclaveGone(assertableError("Couldn't find enclave workspaces-devnet")))
	assert.False(t, isEnclaveGone(assertableError("connection refused")))
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
