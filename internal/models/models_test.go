package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue(t *testing.T) {
	t.Run("nil map marshals to empty object", func(t *testing.T) {
		var m Metadata
		v, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), v)
	})

	t.Run("round trips through scan", func(t *testing.T) {
		v, err := Metadata{MetaStorageKey: "u1/d1/f.pdf", MetaByteSize: 42}.Value()
		require.NoError(t, err)

		var got Metadata
		require.NoError(t, got.Scan(v))
		assert.Equal(t, "u1/d1/f.pdf", got.GetString(MetaStorageKey))
		assert.EqualValues(t, 42, got[MetaByteSize])
	})
}

func TestMetadataScan(t *testing.T) {
	t.Run("nil source yields empty map", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.Scan(nil))
		require.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("accepts string source", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.Scan(`{"file_name":"notes.txt"}`))
		assert.Equal(t, "notes.txt", m.GetString(MetaFileName))
	})

	t.Run("rejects unsupported source type", func(t *testing.T) {
		var m Metadata
		assert.Error(t, m.Scan(123))
	})
}

func TestMetadataGetString(t *testing.T) {
	m := Metadata{
		MetaContentType: "application/pdf",
		MetaByteSize:    1024,
	}

	assert.Equal(t, "application/pdf", m.GetString(MetaContentType))
	assert.Equal(t, "", m.GetString(MetaByteSize), "non-string values read as empty")
	assert.Equal(t, "", m.GetString("absent"))

	var nilMap Metadata
	assert.Equal(t, "", nilMap.GetString(MetaContentType))
}

func TestDocumentAccessorsOnEmptyMetadata(t *testing.T) {
	var d Document

	assert.Equal(t, "", d.StorageKey())
	assert.Equal(t, "", d.SourceURL())
	assert.Equal(t, "", d.ContentType())
	assert.Equal(t, "", d.FileName())
}
