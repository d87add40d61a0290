package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goeckslab/Galaxy-Tiling/internal/batch"
	"github.com/goeckslab/Galaxy-Tiling/internal/config"
	"github.com/goeckslab/Galaxy-Tiling/internal/slide"
	"github.com/goeckslab/Galaxy-Tiling/internal/tiler"
	"github.com/goeckslab/Galaxy-Tiling/pkg/logger"
	"github.com/goeckslab/Galaxy-Tiling/pkg/utils"
)

var (
	// batch 命令的 flags
	batchInputs     []string
	batchNames      []string
	batchOutputZip  string
	batchWorkers    int
	batchReportJSON string
)

// batchCmd 是 batch 子命令
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "批量切片并打包归档",
	Long: `对一组全片扫描图像依次执行 校验 -> 切片 -> 打包。

--input 与 --original_name 按位置一一配对，数量不一致会在任何
处理开始前直接失败。单个图像的失败只影响该图像，不会中断批次，
也不影响进程退出状态；批次结束后共享临时目录总会被清理。`,
	Example: `  # 单个图像
  galaxy-tiling batch --input a.svs --original_name slideA.svs --output_zip tiles.zip

  # 多个图像
  galaxy-tiling batch \
    --input a.svs --original_name slideA.svs \
    --input b.svs --original_name slideB.svs \
    --output_zip tiles.zip

  # 输出机器可读的批次报告
  galaxy-tiling batch --input a.svs --original_name slideA.svs \
    --output_zip tiles.zip --report-json report.json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringArrayVar(&batchInputs, "input", nil, "输入图像路径 (可多次指定)")
	batchCmd.Flags().StringArrayVar(&batchNames, "original_name", nil, "图像逻辑名称 (与 --input 按位置配对)")
	batchCmd.Flags().StringVar(&batchOutputZip, "output_zip", "", "输出归档文件路径")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "并发任务数 (默认 1，覆盖配置文件)")
	batchCmd.Flags().StringVar(&batchReportJSON, "report-json", "", "输出 JSON 批次报告到文件")
	_ = batchCmd.MarkFlagRequired("output_zip")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().WithConfigPath(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if batchWorkers > 0 {
		cfg.Batch.Workers = batchWorkers
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
	defer logger.Sync()

	if cfgJSON, err := utils.ToJSON(cfg); err == nil {
		logger.Debug("生效配置", zap.String("config", cfgJSON))
	}

	validator := slide.NewDecoderValidator(cfg.Engine.DecoderBinary)
	engine := tiler.NewPyHIST(cfg.Engine.Binary, cfg.Engine.SegmentBinary)
	orchestrator := batch.New(cfg, validator, engine)

	summary, err := orchestrator.Run(context.Background(), batchInputs, batchNames, batchOutputZip)
	if err != nil {
		return fmt.Errorf("批处理失败: %w", err)
	}

	if !quiet {
		printBatchSummary(summary)
	}

	if batchReportJSON != "" {
		if err := summary.WriteJSON(batchReportJSON); err != nil {
			return fmt.Errorf("写入批次报告失败: %w", err)
		}
	}

	return nil
}

func printBatchSummary(summary *batch.Summary) {
	fmt.Println()
	fmt.Println("     批次结果:")
	fmt.Println()
	fmt.Printf("     运行 ID............: %s\n", summary.RunID)
	fmt.Printf("     任务总数...........: %d\n", summary.Total)
	fmt.Printf("     完成...............: %d\n", summary.Done)
	fmt.Printf("     失败...............: %d\n", summary.Failed)
	fmt.Printf("     跳过...............: %d\n", summary.Skipped)
	fmt.Printf("     切片总数...........: %d\n", summary.TotalTiles)
	fmt.Printf("     归档大小...........: %d 字节\n", summary.ArchiveBytes)
	fmt.Printf("     总耗时.............: %s\n", summary.Elapsed.Round(time.Millisecond))
	if summary.Total > 0 {
		fmt.Printf("     任务耗时 P50.......: %s\n", summary.DurationP50())
		fmt.Printf("     任务耗时 P95.......: %s\n", summary.DurationP95())
		fmt.Printf("     任务耗时最大.......: %s\n", summary.DurationMax())
	}
	fmt.Println()
}
