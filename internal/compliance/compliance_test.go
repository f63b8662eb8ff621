package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func sampleRequest() Request {
	return Request{
		CustomerName:  "Ana López",
		InvoiceNumber: "INV-1760745600000",
		Items: []Item{
			{Description: "Consumo de agua", Amount: 45.6},
			{Description: "Reconexión", Amount: 120},
		},
		TotalAmount:       165.6,
		Date:              "2026-10-18",
		CompanyName:       "Agua Pura S.A. de C.V.",
		CompanyAddress:    "Calle de la pureza 123",
		CompanyContact:    "Tel: 555-123-4567",
		LegalRequirements: "Factura válida para fines fiscales en México.",
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(sampleRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "Customer Name: Ana López")
	assert.Contains(t, prompt, "Invoice Number: INV-1760745600000")
	assert.Contains(t, prompt, "Consumo de agua: 45.6\n")
	assert.Contains(t, prompt, "Reconexión: 120\n")
	assert.Contains(t, prompt, "Total Amount: 165.6")
	assert.Contains(t, prompt, "Legal Requirements: Factura válida para fines fiscales en México.")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "plain json", raw: `{"compliantInvoice":"FACTURA"}`, want: "FACTURA"},
		{name: "fenced json", raw: "```json\n{\"compliantInvoice\":\"FACTURA\"}\n```", want: "FACTURA"},
		{name: "empty text", raw: `{"compliantInvoice":"  "}`, wantErr: ErrEmptyInvoice},
		{name: "missing field", raw: `{}`, wantErr: ErrEmptyInvoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseResponse("not json")
	require.Error(t, err)
}

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGenAIComposer_Compose(t *testing.T) {
	models := &fakeModels{resp: textResponse(`{"compliantInvoice":"FACTURA INV-1760745600000"}`)}
	c := &GenAIComposer{models: models, model: DefaultModel}

	text, err := c.Compose(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "FACTURA INV-1760745600000", text)
	assert.Equal(t, DefaultModel, models.model)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	assert.Equal(t, []string{"compliantInvoice"}, models.config.ResponseSchema.Required)
	assert.Contains(t, models.prompt, "Customer Name: Ana López")
}

func TestGenAIComposer_ComposeErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := &GenAIComposer{models: &fakeModels{err: boom}, model: DefaultModel}
	_, err := c.Compose(context.Background(), sampleRequest())
	require.ErrorIs(t, err, boom)

	c = &GenAIComposer{models: &fakeModels{resp: &genai.GenerateContentResponse{}}, model: DefaultModel}
	_, err = c.Compose(context.Background(), sampleRequest())
	require.Error(t, err)
}

func TestNewGenAIComposer_RequiresKey(t *testing.T) {
	_, err := NewGenAIComposer(context.Background(), "", "")
	require.Error(t, err)
}
