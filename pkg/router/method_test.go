package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMethods(t *testing.T) {
	all := Methods()
	require.Len(t, all, 34)
	assert.Equal(t, ACL, all[0])
	assert.Equal(t, UNSUBSCRIBE, all[len(all)-1])

	for _, m := range all {
		parsed, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" m-search ")
	require.NoError(t, err)
	assert.Equal(t, MSEARCH, m)
	assert.Equal(t, "M-SEARCH", m.String())

	_, err = ParseMethod("FETCH")
	assert.Error(t, err)
	assert.Equal(t, "Method(99)", Method(99).String())
	assert.False(t, Method(-1).Valid())
}

func TestMethodYAML(t *testing.T) {
	var methods []Method
	require.NoError(t, yaml.Unmarshal([]byte("[get, Patch, PROPFIND]"), &methods))
	assert.Equal(t, []Method{GET, PATCH, PROPFIND}, methods)

	out, err := yaml.Marshal(methods)
	require.NoError(t, err)
	assert.Equal(t, "- GET\n- PATCH\n- PROPFIND\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("[fetch]"), &methods))
}
