package ocrnorm

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/textract"
	"github.com/aws/aws-sdk-go/service/textract/textractiface"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/money"
)

// TextractProviderTag identifies the primary, entity-form OCR in run records.
const TextractProviderTag = "aws_textract"

/*
TextractProvider is the entity-form OCR: AWS Textract delivers word-level
geometry (DetectDocumentText) and receipt entities plus line items
(AnalyzeExpense). Credentials and region come from the standard AWS
environment/profile chain.
*/
type TextractProvider struct {
	client textractiface.TextractAPI
}

// NewTextractProvider builds the provider on a fresh AWS session.
func NewTextractProvider() (provider *TextractProvider, e *xerr.Error) {
	sess, err := session.NewSessionWithOptions(session.Options{SharedConfigState: session.SharedConfigEnable})
	if err != nil {
		return nil, xerr.NewError(err, "create AWS session for Textract", nil)
	}
	return &TextractProvider{client: textract.New(sess)}, nil
}

// NewTextractProviderWithClient injects a client; tests use it.
func NewTextractProviderWithClient(client textractiface.TextractAPI) *TextractProvider {
	return &TextractProvider{client: client}
}

func (p *TextractProvider) Tag() string {
	return TextractProviderTag
}

/*
Parse runs both Textract calls and normalizes their union:

 1. DetectDocumentText: WORD blocks with bounding boxes become TextBlocks
    (normalized top-left coordinates, confidence rescaled to [0,1]).
 2. AnalyzeExpense: summary fields become named entities, line item groups
    become parser-ready LineItems.
*/
func (p *TextractProvider) Parse(imageBytes []byte, mimeType string) (normalized *NormalizedOcr, e *xerr.Error) {
	tl.Log(tl.Notice, palette.BlueBold, "%s with %s ('%s' bytes, mime '%s')", "Running OCR", "AWS Textract", fmt.Sprintf("%d", len(imageBytes)), mimeType)

	document := &textract.Document{Bytes: imageBytes}

	detectOut, detectErr := p.client.DetectDocumentText(&textract.DetectDocumentTextInput{Document: document})
	if detectErr != nil {
		return nil, xerr.NewError(detectErr, "Textract DetectDocumentText call", mimeType)
	}

	expenseOut, expenseErr := p.client.AnalyzeExpense(&textract.AnalyzeExpenseInput{Document: document})
	if expenseErr != nil {
		return nil, xerr.NewError(expenseErr, "Textract AnalyzeExpense call", mimeType)
	}

	output := ProviderOutput{
		Blocks:    wordBlocks(detectOut.Blocks),
		Entities:  summaryEntities(expenseOut),
		LineItems: expenseLineItems(expenseOut),
	}

	normalized = Normalize(output, TextractProviderTag)
	tl.Log(
		tl.Notice1, palette.GreenBold, "%s with %s: '%s' blocks, '%s' entities, '%s' line items",
		"OCR completed", "AWS Textract", fmt.Sprintf("%d", len(normalized.Blocks)),
		fmt.Sprintf("%d", len(normalized.Entities)), fmt.Sprintf("%d", len(normalized.LineItems)),
	)
	return normalized, nil
}

func wordBlocks(blocks []*textract.Block) []geometry.TextBlock {
	out := make([]geometry.TextBlock, 0, len(blocks))
	for _, block := range blocks {
		if aws.StringValue(block.BlockType) != textract.BlockTypeWord {
			continue
		}
		text := aws.StringValue(block.Text)
		if text == "" || block.Geometry == nil || block.Geometry.BoundingBox == nil {
			continue
		}

		box := block.Geometry.BoundingBox
		tb := geometry.TextBlock{
			Text:       text,
			X:          aws.Float64Value(box.Left),
			Y:          aws.Float64Value(box.Top),
			Width:      aws.Float64Value(box.Width),
			Height:     aws.Float64Value(box.Height),
			PageNumber: int(aws.Int64Value(block.Page)),
			Confidence: aws.Float64Value(block.Confidence) / 100,
		}
		out = append(out, tb)
	}
	return out
}

func summaryEntities(out *textract.AnalyzeExpenseOutput) map[string]EntityValue {
	entities := make(map[string]EntityValue)
	for _, doc := range out.ExpenseDocuments {
		for _, field := range doc.SummaryFields {
			if field.Type == nil || field.ValueDetection == nil {
				continue
			}
			key := strings.ToUpper(aws.StringValue(field.Type.Text))
			text := aws.StringValue(field.ValueDetection.Text)
			if key == "" || text == "" {
				continue
			}
			confidence := aws.Float64Value(field.ValueDetection.Confidence) / 100

			// Keep the most confident value per entity type.
			if existing, seen := entities[key]; seen && existing.Confidence >= confidence {
				continue
			}
			entities[key] = NewEntityValue(key, text, confidence)
		}
	}
	return entities
}

func expenseLineItems(out *textract.AnalyzeExpenseOutput) []LineItem {
	var items []LineItem
	for _, doc := range out.ExpenseDocuments {
		for _, group := range doc.LineItemGroups {
			for _, line := range group.LineItems {
				item := LineItem{}
				rowConfidence := 0.0
				fields := 0
				for _, field := range line.LineItemExpenseFields {
					if field.Type == nil || field.ValueDetection == nil {
						continue
					}
					text := aws.StringValue(field.ValueDetection.Text)
					confidence := aws.Float64Value(field.ValueDetection.Confidence) / 100
					rowConfidence += confidence
					fields++

					switch strings.ToUpper(aws.StringValue(field.Type.Text)) {
					case "ITEM":
						item.Description = text
					case "PRICE":
						if value, ok := money.ParseAmount(text); ok {
							item.LineTotal = value
						}
					case "UNIT_PRICE":
						if value, ok := money.ParseAmount(text); ok {
							item.UnitPrice = value
						}
					case "QUANTITY":
						if value, ok := money.ParseAmount(text); ok {
							item.Quantity = value
						}
					}
				}
				if item.Description == "" && item.LineTotal == 0 {
					continue
				}
				if fields > 0 {
					item.Confidence = rowConfidence / float64(fields)
				}
				items = append(items, item)
			}
		}
	}
	return items
}
