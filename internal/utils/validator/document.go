// internal/utils/validator/document.go
package validator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

const (
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
	CodeInvalidHeader   = "INVALID_PDF_HEADER"
	CodeEmptyFile       = "EMPTY_FILE"
)

var pdfMagic = []byte("%PDF-")

// DocumentValidator checks uploads at the HTTP boundary. The size limit is
// not checked here; oversized files are reported per document by the batch.
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	AllowedTypes map[string][]string // 允许的文件类型 {扩展名: []MIME类型}
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{
			AllowedTypes: map[string][]string{
				".pdf": {"application/pdf"},
			},
		}
	}

	return &DocumentValidator{
		logger: logger,
		config: config,
	}
}

// ValidateFile 验证单个文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return v.Validate(file.Filename, file.Size, f)
}

// Validate checks one file given its name, declared size and content.
func (v *DocumentValidator) Validate(filename string, size int64, r io.Reader) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      size,
			Extension: strings.ToLower(filepath.Ext(filename)),
		},
	}

	// 读取文件头部并计算哈希
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	head = head[:n]

	hash := sha256.New()
	hash.Write(head)
	if _, err := io.Copy(hash, r); err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hex.EncodeToString(hash.Sum(nil))
	result.FileInfo.MimeType = http.DetectContentType(head)

	add := func(e ValidationError) {
		result.IsValid = false
		result.Errors = append(result.Errors, e)
	}

	allowedMimes, ok := v.config.AllowedTypes[result.FileInfo.Extension]
	if !ok {
		add(ValidationError{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("File type %s is not allowed", result.FileInfo.Extension),
			Field:   "extension",
		})
		return result, nil
	}

	if n == 0 {
		add(ValidationError{Code: CodeEmptyFile, Message: "File is empty", Field: "size"})
		return result, nil
	}

	if !contains(allowedMimes, result.FileInfo.MimeType) {
		add(ValidationError{
			Code:    CodeInvalidMimeType,
			Message: fmt.Sprintf("Invalid MIME type %s for extension %s", result.FileInfo.MimeType, result.FileInfo.Extension),
			Field:   "mimeType",
		})
	}

	if result.FileInfo.Extension == ".pdf" && !bytes.HasPrefix(head, pdfMagic) {
		add(ValidationError{
			Code:    CodeInvalidHeader,
			Message: "File does not start with a PDF header",
			Field:   "content",
		})
	}

	return result, nil
}

// ValidateFiles 批量验证文件, results keep the input order.
func (v *DocumentValidator) ValidateFiles(files []*multipart.FileHeader) ([]*ValidationResult, error) {
	results := make([]*ValidationResult, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = v.ValidateFile(file)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			v.logger.Error("Failed to validate file",
				logger.String("filename", files[i].Filename),
				logger.Error(err),
			)
			return nil, err
		}
	}

	return results, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
