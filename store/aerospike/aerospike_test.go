package aerospike_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/writeharness/store/aerospike"
)

func TestParseHosts(t *testing.T) {
	tests := []struct {
		name     string
		hosts    string
		expHosts []aerospike.Host
		expErr   bool
	}{
		{
			name:     "A single host with port.",
			hosts:    "172.17.0.2:3000",
			expHosts: []aerospike.Host{{Name: "172.17.0.2", Port: 3000}},
		},
		{
			name:     "A host without port should use the default port.",
			hosts:    "localhost",
			expHosts: []aerospike.Host{{Name: "localhost", Port: aerospike.DefaultPort}},
		},
		{
			name:  "Multiple hosts.",
			hosts: "a:3100, b ,[::1]:3200",
			expHosts: []aerospike.Host{
				{Name: "a", Port: 3100},
				{Name: "b", Port: aerospike.DefaultPort},
				{Name: "::1", Port: 3200},
			},
		},
		{
			name:   "An invalid port should fail.",
			hosts:  "a:port",
			expErr: true,
		},
		{
			name:   "A port out of range should fail.",
			hosts:  "a:70000",
			expErr: true,
		},
		{
			name:   "A missing host name should fail.",
			hosts:  ":3000",
			expErr: true,
		},
		{
			name:   "No hosts should fail.",
			hosts:  " , ",
			expErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			got, err := aerospike.ParseHosts(test.hosts, aerospike.DefaultPort)
			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expHosts, got)
			}
		})
	}
}

func TestHostString(t *testing.T) {
	assert.Equal(t, "172.17.0.2:3000", aerospike.Host{Name: "172.17.0.2", Port: 3000}.String())
	assert.Equal(t, "[::1]:3000", aerospike.Host{Name: "::1", Port: 3000}.String())
}

func TestNewWithoutHosts(t *testing.T) {
	_, err := aerospike.New(aerospike.Config{})
	assert.Error(t, err)
}
