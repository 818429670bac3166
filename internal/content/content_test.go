package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wownote/internal/apperr"
)

func TestParseType(t *testing.T) {
	got, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, TypeText, got)

	got, err = ParseType(" storage ")
	require.NoError(t, err)
	assert.Equal(t, TypeStorage, got)

	_, err = ParseType("video")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		raw     string
		want    Payload
		wantErr bool
	}{
		{name: "absent", typ: TypeText, raw: "", want: nil},
		{name: "null", typ: TypeStorage, raw: "null", want: nil},
		{name: "text with styling", typ: TypeText, raw: `{"text":"hi","bgColor":"#fff"}`, want: TextContent{Text: "hi", BgColor: "#fff"}},
		{name: "image shares file shape", typ: TypeImage, raw: `{"file_path":"/u/a.png","filename":"a.png"}`, want: FileContent{FilePath: "/u/a.png", Filename: "a.png"}},
		{name: "storage ignores unknown fields", typ: TypeStorage, raw: `{"path":"~/Docs","extra":1}`, want: StorageContent{Path: "~/Docs"}},
		{name: "link requires url", typ: TypeLink, raw: `{"title":"x"}`, wantErr: true},
		{name: "wrong field type", typ: TypeStorage, raw: `{"path":42}`, wantErr: true},
		{name: "array payload", typ: TypeText, raw: `["a"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.typ, []byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDropsUnknownFields(t *testing.T) {
	out, err := Normalize(TypeLink, []byte(`{"url":"https://example.com","title":"Ex","junk":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com","title":"Ex"}`, string(out))

	out, err = Normalize(TypeText, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStorageAccessor(t *testing.T) {
	_, err := Storage(TypeText, []byte(`{"path":"/tmp"}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = Storage(TypeStorage, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	c, err := Storage(TypeStorage, []byte(`{"path":"/tmp","view_mode":"grid"}`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp", c.Path)
	assert.Equal(t, "grid", c.ViewMode)
}

func TestFileAccessor(t *testing.T) {
	_, err := File(TypeStorage, []byte(`{"path":"/tmp"}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = File(TypeFile, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	c, err := File(TypeFile, []byte(`{"file_path":"/u/a.txt","filename":"a.txt","file_size":3}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.FileSize)
}
