package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryCreateWithNoPluginPropertyReturnsNilService(t *testing.T) {
	f := NewFactory()
	svc, err := f.Create(map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestFactoryCreateWithUnregisteredPluginErrors(t *testing.T) {
	f := NewFactory()
	_, err := f.Create(map[string]string{"dds.persistence.plugin": "builtin.SQLITE3"})
	assert.Error(t, err)
}

func TestFactoryCreateDispatchesToRegisteredBuilder(t *testing.T) {
	f := NewFactory()
	var gotProps map[string]string
	f.Register("builtin.MEMORY", func(properties map[string]string) (Service, error) {
		gotProps = properties
		return nil, nil
	})

	props := map[string]string{"dds.persistence.plugin": "builtin.MEMORY", "dds.persistence.sqlite3.filename": "x.db"}
	_, err := f.Create(props)
	require.NoError(t, err)
	assert.Equal(t, props, gotProps)
}
