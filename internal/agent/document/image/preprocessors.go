package image

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImagePreprocessor 图像预处理接口
type ImagePreprocessor interface {
	Process(img image.Image) (image.Image, error)
}

type PreprocessConfig struct {
	Denoise         bool
	DenoiseStrength float64
	Contrast        float64
	Sharpen         bool
	SharpenStrength float64
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		Denoise:         false,
		DenoiseStrength: 0.5,
		Contrast:        20,
		Sharpen:         true,
		SharpenStrength: 0.5,
	}
}

// NewPipeline 构建预处理管道: 灰度 -> (降噪) -> 对比度 -> (锐化)
func NewPipeline(cfg PreprocessConfig) []ImagePreprocessor {
	pipeline := []ImagePreprocessor{NewGrayscaleProcessor()}
	if cfg.Denoise {
		pipeline = append(pipeline, NewDenoiseProcessor(cfg.DenoiseStrength))
	}
	if cfg.Contrast != 0 {
		pipeline = append(pipeline, NewContrastProcessor(cfg.Contrast))
	}
	if cfg.Sharpen {
		pipeline = append(pipeline, NewSharpenProcessor(cfg.SharpenStrength))
	}
	return pipeline
}

func applyPreprocessing(img image.Image, pipeline []ImagePreprocessor) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	var err error
	result := img
	for _, processor := range pipeline {
		result, err = processor.Process(result)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	return result, nil
}

// 灰度处理器
type GrayscaleProcessor struct{}

func NewGrayscaleProcessor() *GrayscaleProcessor {
	return &GrayscaleProcessor{}
}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

// 降噪处理器
type DenoiseProcessor struct {
	strength float64
}

func NewDenoiseProcessor(strength float64) *DenoiseProcessor {
	return &DenoiseProcessor{strength: strength}
}

func (p *DenoiseProcessor) Process(img image.Image) (image.Image, error) {
	// 使用高斯模糊进行降噪
	return imaging.Blur(img, p.strength), nil
}

// 对比度处理器
type ContrastProcessor struct {
	amount float64
}

func NewContrastProcessor(amount float64) *ContrastProcessor {
	return &ContrastProcessor{amount: amount}
}

func (p *ContrastProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, p.amount), nil
}

// 锐化处理器
type SharpenProcessor struct {
	strength float64
}

func NewSharpenProcessor(strength float64) *SharpenProcessor {
	return &SharpenProcessor{strength: strength}
}

func (p *SharpenProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Sharpen(img, p.strength), nil
}
