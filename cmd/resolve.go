package cmd

import (
	"fmt"

	"ClipForge/core/app"
	"ClipForge/model"

	"github.com/spf13/cobra"
)

var (
	resolveCustom  bool
	resolveLicense bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "解析远程资源",
	Long:  `按 本地 -> 结构化缓存 -> 网络 的顺序解析资源，素材包会安装到引擎，字体返回字体族名`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.Open(ctx, cfg, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ref := model.AssetRef{URL: args[0], Custom: resolveCustom, CheckLicense: resolveLicense}
		fmt.Printf("类型: %s  标识: %s\n", ref.Kind(), ref.Identity())
		result, err := a.Resolver.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("解析失败: %w", err)
		}
		fmt.Println(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveCustom, "custom", false, "按自定义资源处理")
	resolveCmd.Flags().BoolVar(&resolveLicense, "license", false, "安装时附带授权文件")
	resolveCmd.Example = `  clipforge resolve https://cdn.example.com/fonts/SourceHanSans.ttf
  clipforge resolve https://cdn.example.com/E6AD8162.2.captionstyle --license`
}
