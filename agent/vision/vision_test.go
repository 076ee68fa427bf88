package vision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	promptx "github.com/tanpawarit/kirana-assistant/agent/prompt"
	"github.com/tanpawarit/kirana-assistant/store/storetest"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

type fakeVisionModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (f *fakeVisionModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeVisionModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func newTestAnalyzer(t *testing.T, fake *fakeVisionModel) *Analyzer {
	t.Helper()
	a, err := New(context.Background(), fake, promptx.LoadPromptSet())
	require.NoError(t, err)
	return a
}

func TestReadBill(t *testing.T) {
	fake := &fakeVisionModel{reply: "Here are the items:\n```json\n" +
		`[{"name":"Toor Dal 1kg","quantity":10,"unit_price":"₹120","total_price":1200},` +
		`{"name":"  ","quantity":1,"unit_price":5,"total_price":5},` +
		`{"name":"Jaggery","quantity":"4","unit_price":null,"total_price":"1,000"}]` + "\n```"}
	a := newTestAnalyzer(t, fake)

	lines, err := a.ReadBill(context.Background(), Image{Data: pngPixel})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Toor Dal 1kg", lines[0].Name)
	assert.InDelta(t, 120, lines[0].UnitPrice.Float(), 0.001)
	assert.InDelta(t, 4, lines[1].Quantity.Float(), 0.001)
	assert.InDelta(t, 1000, lines[1].TotalPrice.Float(), 0.001)

	msgs := fake.inputs[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `[{"name": "Toor Dal 1kg"`)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.True(t, strings.HasPrefix(msgs[1].MultiContent[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestReadShelf(t *testing.T) {
	fake := &fakeVisionModel{reply: `[{"name":"Maggi Noodles","count":12,"category":"Snacks","misplaced":false},{"name":"Surf Excel","count":"2","category":"Essentials","misplaced":true}]`}
	a := newTestAnalyzer(t, fake)

	entries, err := a.ReadShelf(context.Background(), Image{Data: pngPixel, MIMEType: "image/png"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[1].Misplaced)
	assert.InDelta(t, 2, entries[1].Count.Float(), 0.001)
	assert.Contains(t, fake.inputs[0][0].Content, "shelves")
}

func TestAnalyzeErrors(t *testing.T) {
	cases := map[string]struct {
		fake *fakeVisionModel
		img  Image
		want error
	}{
		"empty image":  {fake: &fakeVisionModel{}, img: Image{}, want: contractx.ErrValidation},
		"not an image": {fake: &fakeVisionModel{}, img: Image{Data: []byte("hello world")}, want: contractx.ErrValidation},
		"model error":  {fake: &fakeVisionModel{err: errors.New("502")}, img: Image{Data: pngPixel}, want: contractx.ErrModelInvoke},
		"prose reply":  {fake: &fakeVisionModel{reply: "I can't read this bill."}, img: Image{Data: pngPixel}, want: contractx.ErrSchemaViolation},
		"bad field":    {fake: &fakeVisionModel{reply: `[{"name": 5}]`}, img: Image{Data: pngPixel}, want: contractx.ErrSchemaViolation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a := newTestAnalyzer(t, tc.fake)
			_, err := a.ReadBill(context.Background(), tc.img)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBillInputsMergeIntoStore(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	dal := storetest.MustCreate(t, s, "Toor Dal 1kg", 110, 6, 40)

	inputs := BillInputs([]BillLine{
		{Name: "toor dal 1kg", Quantity: 10, UnitPrice: 120},
		{Name: "Jaggery", Quantity: 4, TotalPrice: 250},
		{Name: "Rice", Quantity: -2, UnitPrice: 0},
		{Name: " "},
	})
	require.Len(t, inputs, 3)
	assert.Equal(t, ImportCategory, inputs[1].Category)
	assert.InDelta(t, 62.5, inputs[1].Price, 0.001)
	assert.Equal(t, 0, inputs[2].Stock)

	merged, err := s.BulkMerge(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	got, err := s.GetProduct(ctx, dal.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, got.Stock)
	assert.InDelta(t, 120, got.Price, 0.001)
}

func TestShelfAssignmentsUpdateStore(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	maggi := storetest.MustCreate(t, s, "Maggi Noodles", 14, 30, 60)

	entries := []ShelfEntry{{Name: "maggi"}, {Name: "Unknown Brand"}}
	assert.Nil(t, ShelfAssignments(entries, "  "))

	n, err := s.UpdateShelfPositions(ctx, ShelfAssignments(entries, "B2"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetProduct(ctx, maggi.ID)
	require.NoError(t, err)
	assert.Equal(t, "B2", got.ShelfPosition)
}
