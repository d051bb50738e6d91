package multiverse

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCodec() Codec[string, testBlock] {
	return Codec[string, testBlock]{
		EncodeKey: func(id string) []byte { return []byte(id) },
		EncodeValue: func(b testBlock) ([]byte, error) {
			buf := make([]byte, 0, len(b.id)+1+len(b.parent)+1+8)
			buf = append(buf, byte(len(b.id)))
			buf = append(buf, b.id...)
			buf = append(buf, byte(len(b.parent)))
			buf = append(buf, b.parent...)
			bn := make([]byte, 8)
			binary.BigEndian.PutUint64(bn, b.blockNumber)
			buf = append(buf, bn...)
			return buf, nil
		},
		DecodeValue: func(data []byte) (testBlock, error) {
			if len(data) < 1 {
				return testBlock{}, errors.New("short buffer")
			}
			idLen := int(data[0])
			id := string(data[1 : 1+idLen])
			rest := data[1+idLen:]
			parentLen := int(rest[0])
			parent := string(rest[1 : 1+parentLen])
			bn := binary.BigEndian.Uint64(rest[1+parentLen:])
			return testBlock{id: id, parent: parent, blockNumber: bn}, nil
		},
	}
}

func TestMultiversePersistRoundTripAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mv")

	mv, err := Open[string, testBlock](dir, 0, testCodec())
	require.NoError(t, err)

	require.NoError(t, mv.Insert(blk("root", "", 0)))
	require.NoError(t, mv.Insert(blk("a", "root", 1)))
	require.NoError(t, mv.Insert(blk("b", "a", 2)))
	require.NoError(t, mv.Close())

	reopened, err := Open[string, testBlock](dir, 0, testCodec())
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 3, reopened.Len())
	v, ok := reopened.Get("b")
	require.True(t, ok)
	require.Equal(t, uint64(2), v.BlockNumber())
	require.ElementsMatch(t, []string{"b"}, reopened.Tips())
}

func TestMultiversePersistRespectsStoreFrom(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mv")

	mv, err := Open[string, testBlock](dir, 2, testCodec())
	require.NoError(t, err)

	require.NoError(t, mv.Insert(blk("root", "", 0)))
	require.NoError(t, mv.Insert(blk("a", "root", 1)))
	require.NoError(t, mv.Insert(blk("b", "a", 2)))
	require.NoError(t, mv.Close())

	reopened, err := Open[string, testBlock](dir, 2, testCodec())
	require.NoError(t, err)
	defer reopened.Close()

	// Only block number 2 met storeFrom, so only "b" survives a reopen.
	require.Equal(t, 1, reopened.Len())
	require.True(t, reopened.Contains("b"))
	require.False(t, reopened.Contains("root"))
}

func TestMultiverseTemporaryDoesNotPersistAcrossInstances(t *testing.T) {
	mv, err := Temporary[string, testBlock](testCodec())
	require.NoError(t, err)
	require.NoError(t, mv.Insert(blk("root", "", 0)))
	require.NoError(t, mv.Close())

	other, err := Temporary[string, testBlock](testCodec())
	require.NoError(t, err)
	defer other.Close()
	require.True(t, other.IsEmpty())
}
