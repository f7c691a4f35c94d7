package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ClipForge/core/app"
	"ClipForge/core/engine"
	"ClipForge/core/project"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	buildProject string
	buildOutput  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "按项目文件构建时间线并输出布局",
	Long:  `使用 Headless 引擎构建时间线，将轨道、字幕、贴纸布局以 YAML 输出，用于检查项目文件`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.Open(ctx, cfg, app.Options{Source: project.FileSource{Path: buildProject}})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Composer.BuildTimeline(ctx, nil); err != nil {
			return err
		}

		out := io.Writer(os.Stdout)
		if buildOutput != "" {
			f, err := os.Create(buildOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return dumpLayout(out, a.Composer.Timeline())
	},
}

func dumpLayout(w io.Writer, tl engine.Timeline) error {
	ht, ok := tl.(*engine.HeadlessTimeline)
	if !ok {
		return errors.New("当前引擎不支持导出布局")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ht.Layout()); err != nil {
		return fmt.Errorf("输出布局失败: %w", err)
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&buildProject, "project", "p", "", "项目文件 (YAML/JSON)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "布局输出文件，默认标准输出")
	buildCmd.MarkFlagRequired("project")
}
