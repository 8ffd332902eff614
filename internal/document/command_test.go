package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		want    Command
		wantErr error
	}{
		{"bold", 0, Bold{}, nil},
		{"Italic", 0, Italic{}, nil},
		{"heading", 2, Heading{Level: 2}, nil},
		{"heading", 7, nil, ErrHeadingLevel},
		{"paragraph", 0, Paragraph{}, nil},
		{"ul", 0, UnorderedList{}, nil},
		{"ordered_list", 0, OrderedList{}, nil},
		{"quote", 0, Quote{}, nil},
		{"hr", 0, Rule{}, nil},
		{"underline", 0, nil, ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.name, tt.level)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoldToggles(t *testing.T) {
	d := New()
	p, txt := para(d, "make this bold")

	r, err := d.Apply(Bold{}, Range{Anchor: Position{Node: txt.ID, Offset: 5}, Focus: Position{Node: txt.ID, Offset: 9}})
	require.NoError(t, err)

	kids := d.Children(p.ID)
	require.Len(t, kids, 3)
	assert.Equal(t, "this", kids[1].Text)
	assert.True(t, kids[1].Marks.Has(MarkBold))
	assert.False(t, kids[0].Marks.Has(MarkBold))
	assert.False(t, kids[2].Marks.Has(MarkBold))

	_, err = d.Apply(Bold{}, r)
	require.NoError(t, err)
	assert.False(t, d.Node(kids[1].ID).Marks.Has(MarkBold))
}

func TestItalicAcrossParagraphs(t *testing.T) {
	d := New()
	_, a := para(d, "one")
	_, b := para(d, "two")

	_, err := d.Apply(Italic{}, Range{Anchor: Position{Node: a.ID, Offset: 1}, Focus: Position{Node: b.ID, Offset: 2}})
	require.NoError(t, err)

	assert.False(t, a.Marks.Has(MarkItalic))
	assert.Equal(t, "o", a.Text)
	assert.True(t, b.Marks.Has(MarkItalic))
	assert.Equal(t, "tw", b.Text)
}

func TestHeadingAndParagraph(t *testing.T) {
	d := New()
	p, txt := para(d, "title")
	caret := Caret(Position{Node: txt.ID, Offset: 2})

	_, err := d.Apply(Heading{Level: 2}, caret)
	require.NoError(t, err)
	assert.Equal(t, KindHeading, p.Kind)
	assert.Equal(t, 2, p.Level)

	_, err = d.Apply(Paragraph{}, caret)
	require.NoError(t, err)
	assert.Equal(t, KindParagraph, p.Kind)
	assert.Zero(t, p.Level)

	_, err = d.Apply(Heading{Level: 0}, caret)
	assert.ErrorIs(t, err, ErrHeadingLevel)
}

func TestListToggle(t *testing.T) {
	d := New()
	_, a := para(d, "a")
	_, b := para(d, "b")
	r := Range{Anchor: Position{Node: a.ID}, Focus: Position{Node: b.ID, Offset: 1}}

	_, err := d.Apply(UnorderedList{}, r)
	require.NoError(t, err)
	blocks := d.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, KindList, blocks[0].Kind)
	assert.False(t, blocks[0].Ordered)
	assert.Len(t, blocks[0].Children, 2)

	_, err = d.Apply(OrderedList{}, r)
	require.NoError(t, err)
	assert.True(t, d.Blocks()[0].Ordered)

	_, err = d.Apply(OrderedList{}, r)
	require.NoError(t, err)
	blocks = d.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, KindParagraph, blocks[0].Kind)
	assert.Equal(t, KindParagraph, blocks[1].Kind)
}

func TestUnwrapMiddleItemSplitsList(t *testing.T) {
	d := New()
	list := d.Append(d.Root().ID, KindList)
	var texts []*Node
	for _, s := range []string{"1", "2", "3"} {
		item := d.Append(list.ID, KindListItem)
		p := d.Append(item.ID, KindParagraph)
		texts = append(texts, d.AppendText(p.ID, s, 0))
	}

	_, err := d.Apply(UnorderedList{}, Caret(Position{Node: texts[1].ID}))
	require.NoError(t, err)
	blocks := d.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, KindList, blocks[0].Kind)
	assert.Equal(t, KindParagraph, blocks[1].Kind)
	assert.Equal(t, KindList, blocks[2].Kind)
	assert.Equal(t, "3", d.TextContent(blocks[2].ID))
}

func TestUnwrapItemWithTwoParagraphs(t *testing.T) {
	d := New()
	list := d.Append(d.Root().ID, KindList)
	item := d.Append(list.ID, KindListItem)
	first := d.Append(item.ID, KindParagraph)
	a := d.AppendText(first.ID, "a", 0)
	second := d.Append(item.ID, KindParagraph)
	b := d.AppendText(second.ID, "b", 0)
	r := Range{Anchor: Position{Node: a.ID}, Focus: Position{Node: b.ID, Offset: 1}}

	require.NotPanics(t, func() {
		_, err := d.Apply(UnorderedList{}, r)
		require.NoError(t, err)
	})
	blocks := d.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, KindParagraph, blocks[0].Kind)
	assert.Equal(t, KindParagraph, blocks[1].Kind)
	assert.Equal(t, "a", d.TextContent(blocks[0].ID))
	assert.Equal(t, "b", d.TextContent(blocks[1].ID))
}

func TestUnwrapItemsInsideQuote(t *testing.T) {
	d := New()
	quote := d.Append(d.Root().ID, KindBlockquote)
	list := d.Append(quote.ID, KindList)
	var texts []*Node
	for _, s := range []string{"1", "2"} {
		item := d.Append(list.ID, KindListItem)
		for _, suffix := range []string{"a", "b"} {
			p := d.Append(item.ID, KindParagraph)
			texts = append(texts, d.AppendText(p.ID, s+suffix, 0))
		}
	}
	r := Range{Anchor: Position{Node: texts[0].ID}, Focus: Position{Node: texts[3].ID, Offset: 2}}

	_, err := d.Apply(UnorderedList{}, r)
	require.NoError(t, err)
	children := d.Children(quote.ID)
	require.Len(t, children, 4)
	for i, c := range children {
		assert.Equal(t, KindParagraph, c.Kind)
		assert.Equal(t, texts[i].Text, d.TextContent(c.ID))
	}
}

func TestQuoteToggle(t *testing.T) {
	d := New()
	_, txt := para(d, "quoted")
	caret := Caret(Position{Node: txt.ID, Offset: 1})

	_, err := d.Apply(Quote{}, caret)
	require.NoError(t, err)
	require.Equal(t, KindBlockquote, d.Blocks()[0].Kind)

	_, err = d.Apply(Quote{}, caret)
	require.NoError(t, err)
	assert.Equal(t, KindParagraph, d.Blocks()[0].Kind)
}

func TestRuleInsertsBlock(t *testing.T) {
	d := New()
	_, txt := para(d, "text")

	r, err := d.Apply(Rule{}, Caret(Position{Node: txt.ID, Offset: 4}))
	require.NoError(t, err)
	assert.True(t, r.Collapsed())
	require.Len(t, d.Blocks(), 2)
	assert.Equal(t, KindRule, d.Blocks()[1].Kind)
}

func TestApplyRejectsLostRange(t *testing.T) {
	d := New()
	_, err := d.Apply(Bold{}, Caret(Position{Node: 42}))
	assert.ErrorIs(t, err, ErrInvalidPosition)
}
