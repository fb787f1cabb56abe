package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryToCoordinatorPrefersIPv4(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		Port:     11235,
		Text:     []string{"job=wordcount-1"},
		AddrIPv4: []net.IP{net.ParseIP("192.0.2.10")},
	}

	c := entryToCoordinator(entry)
	require.NotNil(t, c)
	assert.Equal(t, "192.0.2.10:11235", c.Address)
	assert.Equal(t, "wordcount-1", c.JobID)
}

func TestEntryToCoordinatorNoAddressIsNil(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	assert.Nil(t, entryToCoordinator(entry))
}

func TestFindTimesOutWhenNothingAdvertises(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := Find(ctx, "no-such-job")
	require.Error(t, err)
}
