package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ClipForge/core/app"
	"ClipForge/core/project"
	"ClipForge/core/timeline"
	"ClipForge/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchProject string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听项目文件，变更后重建时间线",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.Open(ctx, cfg, app.Options{Source: project.FileSource{Path: watchProject}})
		if err != nil {
			return err
		}
		defer a.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		// 编辑器常以重命名方式保存，监听所在目录
		target, err := filepath.Abs(watchProject)
		if err != nil {
			return err
		}
		if err := watcher.Add(filepath.Dir(target)); err != nil {
			return err
		}

		rebuild(ctx, a.Composer)
		return watchLoop(ctx, watcher, target, func() { rebuild(ctx, a.Composer) })
	},
}

// watchLoop 合并 200ms 内的连续写入后触发一次重建
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string, onChange func()) error {
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(200 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logger.ErrorField(err))
		case <-debounce.C:
			onChange()
		}
	}
}

func rebuild(ctx context.Context, c *timeline.Composer) {
	start := time.Now()
	if err := c.BuildTimeline(ctx, nil); err != nil {
		logger.Error("重建失败", logger.ErrorField(err))
		return
	}
	logger.Info("时间线已重建",
		logger.Int64("duration", c.Duration()),
		logger.Duration("elapsed", time.Since(start)))
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "", "项目文件 (YAML/JSON)")
	watchCmd.MarkFlagRequired("project")
}
