package cryptobox

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBox(t *testing.T) *Box {
	t.Helper()
	current, err := NewKey("v2", []byte("current-key-material"))
	require.NoError(t, err)
	previous, err := NewKey("v1", []byte("previous-key-material"))
	require.NoError(t, err)
	box, err := New(KeyRing{Current: current, Previous: []Key{previous}})
	require.NoError(t, err)
	return box
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box := testBox(t)

	for _, plaintext := range []string{"a", "hello world", strings.Repeat("x", 1000), `{"amount":"1234.56"}`} {
		field, err := box.Encrypt(plaintext)
		require.NoError(t, err)
		assert.True(t, IsEncrypted(string(field)))

		got, err := box.Decrypt(field)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptFreshIV(t *testing.T) {
	box := testBox(t)

	first, err := box.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := box.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "same plaintext must never produce identical ciphertext")
}

func TestEncryptJSONRoundTrip(t *testing.T) {
	box := testBox(t)

	type snapshot struct {
		Owner string   `json:"owner"`
		Total string   `json:"total"`
		IDs   []string `json:"ids"`
	}
	in := snapshot{Owner: "user-1", Total: "5012.33", IDs: []string{"a", "b"}}

	field, err := box.EncryptJSON(in)
	require.NoError(t, err)

	var out snapshot
	require.NoError(t, box.DecryptJSON(field, &out))
	assert.Equal(t, in, out)
}

func TestValidationErrors(t *testing.T) {
	box := testBox(t)

	_, err := box.Encrypt("")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = box.Decrypt("")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewKey("v1", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewKey("", []byte("material"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewKey("v:1", []byte("material"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMalformedFieldIsFormatError(t *testing.T) {
	box := testBox(t)

	cases := map[string]string{
		"wrong segment count": "v2:only-two",
		"bad iv encoding":     "v2:!!!:aGVsbG8=",
		"bad ct encoding":     "v2:AAAAAAAAAAAAAAAAAAAAAA==:!!!",
		"short iv":            "v2:aGVsbG8=:aGVsbG8aaaaabbbbccccddd==",
	}
	for name, raw := range cases {
		_, err := box.Decrypt(EncryptedField(raw))
		assert.ErrorIs(t, err, ErrFormat, name)
		assert.False(t, errors.Is(err, ErrKey), name)
		assert.False(t, IsEncrypted(raw), name)
	}
}

func TestWrongKeyIsKeyError(t *testing.T) {
	box := testBox(t)
	other, err := NewKey("v9", []byte("a completely different key"))
	if err != nil {
		t.Fatal(err)
	}
	stranger, err := New(KeyRing{Current: other})
	if err != nil {
		t.Fatal(err)
	}

	field, err := stranger.Encrypt("secret value")
	require.NoError(t, err)

	_, _, err = box.DecryptWithFallback(field)
	assert.ErrorIs(t, err, ErrKey)
	assert.False(t, errors.Is(err, ErrFormat))
}

func TestKeyNormalization(t *testing.T) {
	long := strings.Repeat("k", 64)
	truncated, err := NewKey("v1", []byte(long))
	require.NoError(t, err)
	direct, err := NewKey("v1", []byte(long[:KeySize]))
	require.NoError(t, err)

	boxLong, err := New(KeyRing{Current: truncated})
	require.NoError(t, err)
	boxExact, err := New(KeyRing{Current: direct})
	require.NoError(t, err)

	field, err := boxLong.Encrypt("payload")
	require.NoError(t, err)
	got, err := boxExact.Decrypt(field)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)

	// Short material zero-pads.
	short, err := NewKey("v1", []byte("short"))
	require.NoError(t, err)
	boxShort, err := New(KeyRing{Current: short})
	require.NoError(t, err)
	field, err = boxShort.Encrypt("payload")
	require.NoError(t, err)
	got, err = boxShort.Decrypt(field)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestDecryptWithFallbackReportsKeyVersion(t *testing.T) {
	oldKey, err := NewKey("v1", []byte("previous-key-material"))
	require.NoError(t, err)
	oldBox, err := New(KeyRing{Current: oldKey})
	require.NoError(t, err)

	legacy, err := oldBox.Encrypt("legacy value")
	require.NoError(t, err)

	box := testBox(t)
	plaintext, version, err := box.DecryptWithFallback(legacy)
	require.NoError(t, err)
	assert.Equal(t, "legacy value", plaintext)
	assert.Equal(t, "v1", version)

	fresh, err := box.Encrypt("fresh value")
	require.NoError(t, err)
	_, version, err = box.DecryptWithFallback(fresh)
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
}

func TestReencryptToCurrentIdempotent(t *testing.T) {
	oldKey, err := NewKey("v1", []byte("previous-key-material"))
	require.NoError(t, err)
	oldBox, err := New(KeyRing{Current: oldKey})
	require.NoError(t, err)

	legacy, err := oldBox.Encrypt("value to rotate")
	require.NoError(t, err)

	box := testBox(t)
	rotated, changed, err := box.ReencryptToCurrent(legacy)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, strings.HasPrefix(string(rotated), "v2:"))

	// A second pass over the already-rotated field is a no-op.
	again, changed, err := box.ReencryptToCurrent(rotated)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, rotated, again)

	plaintext, err := box.Decrypt(rotated)
	require.NoError(t, err)
	assert.Equal(t, "value to rotate", plaintext)
}

func TestGenerateKey(t *testing.T) {
	first, err := GenerateKey()
	require.NoError(t, err)
	second, err := GenerateKey()
	require.NoError(t, err)

	raw, err := hex.DecodeString(first)
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)
	assert.NotEqual(t, first, second)
}

func TestIsEncryptedStructuralOnly(t *testing.T) {
	box := testBox(t)
	field, err := box.Encrypt("value")
	require.NoError(t, err)

	assert.True(t, IsEncrypted(string(field)))
	assert.False(t, IsEncrypted("plain text"))
	assert.False(t, IsEncrypted("a:b"))
	assert.False(t, IsEncrypted(""))

	// Structurally valid but forged: still reported as encrypted because
	// the check is not cryptographic.
	forged := "v7:" + strings.Split(string(field), ":")[1] + ":" + strings.Split(string(field), ":")[2]
	assert.True(t, IsEncrypted(forged))
}
