package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCypherLabel(t *testing.T) {
	quoted, err := cypherLabel("biolink:NamedThing")
	require.NoError(t, err)
	assert.Equal(t, "`biolink:NamedThing`", quoted)

	bare, err := cypherLabel("NamedThing")
	require.NoError(t, err)
	assert.Equal(t, "NamedThing", bare)
}

func TestCypherLabelRejectsInjection(t *testing.T) {
	_, err := cypherLabel("Gene; DROP")
	require.Error(t, err)

	_, err = cypherLabel("Gene`) DETACH DELETE n //")
	require.Error(t, err)
}

func TestCypherRelType(t *testing.T) {
	relType, err := cypherRelType("biolink:related_to")
	require.NoError(t, err)
	assert.Equal(t, "`biolink:related_to`", relType)
}

func TestCypherRelTypeRejectsInjection(t *testing.T) {
	_, err := cypherRelType("x]->(m) DETACH DELETE m //")
	require.Error(t, err)

	_, err = cypherRelType("")
	require.Error(t, err)
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, isValidIdentifier("biolink_related_to"))
	assert.False(t, isValidIdentifier(""))
	assert.False(t, isValidIdentifier("1bad"))
	assert.False(t, isValidIdentifier("bad identifier"))
}
