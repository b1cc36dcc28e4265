package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerWithoutBrokers(t *testing.T) {
	p, err := NewProducer(Config{})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNewProducerDoesNotDial(t *testing.T) {
	// kgo connects lazily, so an unreachable seed is accepted here.
	p, err := NewProducer(Config{Brokers: []string{"127.0.0.1:1"}, ClientID: "pldft-test"})
	require.NoError(t, err)
	require.NotNil(t, p)
	p.Close()
}
