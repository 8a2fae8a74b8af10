package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/disintegration/imaging"

	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// TextractAPI is the subset of the Textract client the recognizer calls.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type TextractConfig struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

// TextractRecognizer sends page images to AWS Textract. Textract has no
// language selection; the language argument is ignored.
type TextractRecognizer struct {
	client TextractAPI
	logger logger.Logger
	config TextractConfig
}

func NewTextractRecognizer(ctx context.Context, cfg TextractConfig, log logger.Logger) (*TextractRecognizer, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	// load aws config
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewTextractRecognizerWithClient(client, cfg, log), nil
}

func NewTextractRecognizerWithClient(client TextractAPI, cfg TextractConfig, log logger.Logger) *TextractRecognizer {
	return &TextractRecognizer{
		client: client,
		logger: log,
		config: cfg,
	}
}

func (r *TextractRecognizer) Name() string {
	return "textract"
}

func (r *TextractRecognizer) Recognize(ctx context.Context, img image.Image, _ string) (string, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	result, err := r.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{
			Bytes: buf.Bytes(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to detect document text: %w", err)
	}

	lines := r.processBlocks(result.Blocks)
	r.logger.Debug("Page recognized",
		logger.String("engine", r.Name()),
		logger.Int("blocks", len(result.Blocks)),
		logger.Int("lines", len(lines)),
	)
	return strings.Join(lines, "\n"), nil
}

// helper method: keep LINE blocks above the confidence threshold
func (r *TextractRecognizer) processBlocks(blocks []types.Block) []string {
	var texts []string
	for _, block := range blocks {
		if block.BlockType == types.BlockTypeLine &&
			block.Text != nil &&
			block.Confidence != nil &&
			*block.Confidence >= r.config.MinConfidence {
			texts = append(texts, *block.Text)
		}
	}
	return texts
}
