package extract

import (
	"fmt"
	"strings"
	"testing"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		text string
		take int
		want []string
	}{
		{
			name: "numbered with dot and paren",
			text: "Thinking first.\n1. Black holes\n2) Neutron stars\n  3.   Pulsars  \n",
			want: []string{"Black holes", "Neutron stars", "Pulsars"},
		},
		{
			name: "bullets",
			text: "- Alpha\n* Beta\n• Gamma\n-NoSpace\n",
			want: []string{"Alpha", "Beta", "Gamma"},
		},
		{
			name: "mixed keeps order",
			text: "1. One\nprose line\n- Two\n3. Three",
			want: []string{"One", "Two", "Three"},
		},
		{
			name: "crlf",
			text: "1. One\r\n2. Two\r\n",
			want: []string{"One", "Two"},
		},
		{
			name: "no matches",
			text: "just a paragraph\nof text",
			want: []string{},
		},
		{
			name: "window keeps last",
			text: "1. a\n2. b\n3. c\n4. d",
			take: 2,
			want: []string{"c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Topics(tt.text, tt.take))
		})
	}
}

func TestTopics_LastFiveOfFifty(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&b, "%d. T%d\n", i, i)
	}
	assert.Equal(t, []string{"T46", "T47", "T48", "T49", "T50"}, Topics(b.String(), 5))
}

func TestTopics_DefaultWindow(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&b, "- item %d\n", i)
	}
	got := Topics(b.String(), 0)
	require.Len(t, got, DefaultTakeFromEnd)
	assert.Equal(t, "item 11", got[0])
	assert.Equal(t, "item 30", got[19])
}

func TestNumberedItems(t *testing.T) {
	text := "Here are aspects:\n1. History\n- not this\n2) Culture\n"
	assert.Equal(t, []string{"History", "Culture"}, NumberedItems(text))
}

func TestLayout(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		l, err := Layout(`{"groups":[{"name":"Science","topics":[{"name":"Physics","x":0.2,"y":0.3},{"name":"Chemistry","x":0.3,"y":0.3}]}]}`)
		require.NoError(t, err)
		require.Len(t, l.Groups, 1)
		assert.Len(t, l.Groups[0].Topics, 2)
		assert.Equal(t, []string{"Physics", "Chemistry"}, l.TopicNames())
	})

	t.Run("fenced", func(t *testing.T) {
		l, err := Layout("```json\n{\"groups\":[{\"name\":\"G1\",\"topics\":[{\"name\":\"T1\",\"x\":0.5,\"y\":0.5}]}]}\n```")
		require.NoError(t, err)
		assert.Equal(t, "T1", l.Groups[0].Topics[0].Name)
	})

	t.Run("prose around object", func(t *testing.T) {
		l, err := Layout("Sure! Here is the layout: {\"groups\":[]} Hope it helps.")
		require.NoError(t, err)
		assert.Empty(t, l.Groups)
	})

	t.Run("clamps coordinates", func(t *testing.T) {
		l, err := Layout(`{"groups":[{"name":"G1","topics":[{"name":"T1","x":-0.5,"y":1.5}]}]}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, l.Groups[0].Topics[0].X)
		assert.Equal(t, 1.0, l.Groups[0].Topics[0].Y)
	})

	t.Run("unnamed group", func(t *testing.T) {
		l, err := Layout(`{"groups":[{"topics":[]}]}`)
		require.NoError(t, err)
		assert.Equal(t, "Group 1", l.Groups[0].Name)
	})

	failures := map[string]string{
		"not json":         "not json at all",
		"missing groups":   `{"layout":[]}`,
		"groups not array": `{"groups":{}}`,
		"missing topics":   `{"groups":[{"name":"G"}]}`,
	}
	for name, input := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := Layout(input)
			require.Error(t, err)
			var parseErr *llmerrors.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestMapLayout_JSON(t *testing.T) {
	l := MapLayout{Groups: []Group{{Name: "G", Topics: []Placement{{Name: "T", X: 0.5, Y: 0.25}}}}}
	s, err := l.JSON()
	require.NoError(t, err)

	back, err := Layout(s)
	require.NoError(t, err)
	assert.Equal(t, l, back)
}
