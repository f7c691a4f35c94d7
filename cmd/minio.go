package cmd

import (
	"errors"
	"fmt"
	"os"

	"ClipForge/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioFiles  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO资源桶状态",
	Long:  `查看 MinIO 资源桶中的文件数量、总大小以及各资源类型的占用情况。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("开始连接MinIO服务器...")
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioFromConfig(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		if client == nil {
			return errors.New("未配置 MINIO_ENDPOINT")
		}
		fmt.Println("MinIO连接成功！")
		fmt.Println()

		return client.PrintBucketStatus(cmd.Context(), os.Stdout, minioPrefix, minioFiles)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioFiles, "show-files", "s", false, "列出每个文件")

	minioCmd.Example = `  # 资源桶概况
  clipforge minio

  # 只看字体
  clipforge minio -p "font/"

  # 列出文件
  clipforge minio -p "captionstyle/" -s`
}
