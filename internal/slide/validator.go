// Package slide 提供全片扫描图像的只读校验
package slide

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/goeckslab/Galaxy-Tiling/internal/pipeline"
	"github.com/goeckslab/Galaxy-Tiling/pkg/logger"
)

// Validator 在进行任何重量级处理前确认图像文件可被解码器识别。
type Validator interface {
	// Validate 以只读方式打开 sourcePath，成功说明解码器识别该图像。
	Validate(ctx context.Context, sourcePath string) error
}

// DecoderValidator 通过外部解码器命令校验图像。
// 切片引擎自身对损坏文件的报错并不可靠，所以校验必须先于引擎调用。
type DecoderValidator struct {
	binary string
}

// NewDecoderValidator 创建一个基于外部解码器的校验器。
func NewDecoderValidator(binary string) *DecoderValidator {
	return &DecoderValidator{binary: binary}
}

// Validate 调用解码器打开图像，子进程在两种结果下都会被完整回收。
func (v *DecoderValidator) Validate(ctx context.Context, sourcePath string) error {
	cmd := exec.CommandContext(ctx, v.binary, sourcePath)

	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diagnostic := strings.TrimSpace(stderr.String())
		return pipeline.NewInvalidImageError(sourcePath, diagnostic, err)
	}

	logger.Debug("图像校验通过", zap.String("source", sourcePath))
	return nil
}
