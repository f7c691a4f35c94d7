package cmd

import (
	"ClipForge/core/project"
	"ClipForge/server"

	"github.com/spf13/cobra"
)

var serverProject string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动控制服务",
	Long:  `启动 HTTP 控制服务，提供时间线构建、播放、截图、资源解析接口以及 WebSocket 事件推送`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var source project.Source
		if serverProject != "" {
			source = project.FileSource{Path: serverProject}
		}
		return server.Start(cfg, source)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&serverProject, "project", "p", "", "项目文件 (YAML/JSON)，每次构建时重新读取")
}
