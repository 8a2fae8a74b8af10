package image

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// TesseractOptions 处理选项
type TesseractOptions struct {
	PageSegMode   gosseract.PageSegMode
	Preprocess    bool
	Preprocessing PreprocessConfig
	// Variables are passed to tesseract as-is, e.g. load_system_dawg.
	Variables map[string]string
}

func DefaultTesseractOptions() TesseractOptions {
	return TesseractOptions{
		PageSegMode:   gosseract.PSM_AUTO,
		Preprocess:    true,
		Preprocessing: DefaultPreprocessConfig(),
		Variables: map[string]string{
			"load_system_dawg": "1",
		},
	}
}

// TesseractRecognizer runs Tesseract over page images.
type TesseractRecognizer struct {
	logger        logger.Logger
	options       TesseractOptions
	preprocessors []ImagePreprocessor
}

func NewTesseractRecognizer(log logger.Logger, opts TesseractOptions) *TesseractRecognizer {
	r := &TesseractRecognizer{
		logger:  log,
		options: opts,
	}
	if opts.Preprocess {
		r.preprocessors = NewPipeline(opts.Preprocessing)
	}
	return r
}

func (r *TesseractRecognizer) Name() string {
	return "tesseract"
}

// Recognize returns the text tesseract finds in img.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	processed := img
	if len(r.preprocessors) > 0 {
		var err error
		processed, err = applyPreprocessing(img, r.preprocessors)
		if err != nil {
			return "", err
		}
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, processed, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	// 为每个任务创建新的 Tesseract 客户端
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(r.options.PageSegMode); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	for key, value := range r.options.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(key), value); err != nil {
			return "", fmt.Errorf("failed to set variable %s: %w", key, err)
		}
	}

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}

	r.logger.Debug("Page recognized",
		logger.String("engine", r.Name()),
		logger.String("language", language),
		logger.Int("chars", len(text)),
	)
	return text, nil
}
