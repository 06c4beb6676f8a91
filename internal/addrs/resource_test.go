package addrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResource(t *testing.T) {
	addr, err := ParseResource("local_file.motd")
	assert.NoError(t, err)
	assert.Equal(t, "local_file", addr.Type)
	assert.Equal(t, "motd", addr.Name)
	assert.Equal(t, "local_file.motd", addr.String())
}

func TestParseResource_Invalid(t *testing.T) {
	cases := []string{"", "local_file", "local_file.", ".motd", "a.b.c"}
	for _, in := range cases {
		_, err := ParseResource(in)
		assert.Error(t, err, "input %q should be rejected", in)
	}
}

func TestProviderPrefix(t *testing.T) {
	assert.Equal(t, "local", Resource{Type: "local_file"}.Provider())
	assert.Equal(t, "http", Resource{Type: "http_resource"}.Provider())
	assert.Equal(t, "exec", Resource{Type: "exec"}.Provider())
}
