package cmd

import (
	"fmt"
	"time"

	"nuvyx/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioSign   string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看存储桶中的音频文件，统计信息，或为某个对象生成预签名播放链接。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx := cmd.Context()
		gateway, err := storage.NewGateway(ctx, cfg)
		if err != nil {
			return err
		}

		if minioSign != "" {
			url, err := gateway.PresignStream(ctx, minioSign)
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		}

		if minioStats {
			stats, err := gateway.Stats(ctx, minioPrefix)
			if err != nil {
				return err
			}
			fmt.Printf("前缀: %q\n", minioPrefix)
			fmt.Printf("对象数量: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改时间: %s\n", stats.LastModified.Format(time.RFC3339))
			}
			return nil
		}

		objects, err := gateway.ListAudio(ctx, minioPrefix)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("共 %d 个音频文件\n", len(objects))
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "对象前缀")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示统计信息")
	minioCmd.Flags().StringVar(&minioSign, "sign", "", "为指定对象生成预签名播放链接")
	rootCmd.AddCommand(minioCmd)
}
