/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package reveal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/wordreveal/catalog"
)

func nidoCatalog() *catalog.Catalog {
	return catalog.New(catalog.Meta{Variant: "test", Aliases: []string{"Nidoran"}}, []catalog.Entry{
		{Name: "Pidgey", Secret: "A small bird."},
		{Name: "Nidoran", Secret: "Female."},
		{Name: "Pidgeotto", Secret: "A bigger bird."},
		{Name: "Nidoran", Secret: "Male."},
		{Name: "Mr. Mime", Secret: "A mime."},
	})
}

func TestDecodeCurrentRecord(t *testing.T) {
	s, err := Decode([]byte(`{"all":[2,0,"4"],"user":[0,2]}`), nidoCatalog())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0, 4}, s.Order())
	assert.Equal(t, []int{0, 2}, s.User())
	assert.False(t, s.UserRevealed(4))
	assert.Equal(t, 1, s.IndexOf(0))
}

func TestDecodeDropsBadPositions(t *testing.T) {
	s, err := Decode([]byte(`{"all":[1,1,-1,9,2.5,"x",null,3],"user":[3,7]}`), nidoCatalog())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, s.Order())
	assert.Equal(t, []int{3}, s.User())
}

func TestDecodeRestoresSubsetInvariant(t *testing.T) {
	s, err := Decode([]byte(`{"all":[0],"user":[0,4]}`), nidoCatalog())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 4}, s.Order())
	assert.Equal(t, []int{0, 4}, s.User())
}

func TestDecodeLegacyNames(t *testing.T) {
	s, err := Decode([]byte(`["nidoran","mrmime","nidoran","nidoran","zubat"]`), nidoCatalog())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4, 3}, s.Order())
	assert.Equal(t, []int{1, 4, 3}, s.User())
}

func TestDecodeEmptyAndMalformed(t *testing.T) {
	for _, in := range []string{"", "null"} {
		s, err := Decode([]byte(in), nidoCatalog())
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, 0, s.Len())
	}

	s, err := Decode([]byte("{not json"), nidoCatalog())
	assert.Error(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())

	_, err = Decode([]byte("42"), nidoCatalog())
	assert.Error(t, err)
}

func TestStateMarshalsRecord(t *testing.T) {
	s := NewState()
	s.reveal(3)
	s.reveal(0)
	s.credit(0)
	s.credit(2)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"all":[3,0],"user":[0]}`, string(data))

	data, err = json.Marshal(NewState())
	require.NoError(t, err)
	assert.JSONEq(t, `{"all":[],"user":[]}`, string(data))
}
