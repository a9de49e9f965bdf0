package cmd

import (
	"context"
	"fmt"
	"log"

	"beatflow/storage"

	"github.com/spf13/cobra"
)

var (
	snapshotPrefix string
	snapshotStats  bool
	snapshotDelete bool
	snapshotPrune  int
	snapshotShow   bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "MinIO 目录快照管理",
	Long:  `查看和管理 MinIO 中保存的目录快照，支持列出、统计、查看最新快照、按前缀删除和只保留最近 N 个。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if !cfg.SnapshotsEnabled() {
			log.Fatal("未配置 MINIO_ENDPOINT，快照功能未启用")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewSnapshotStore(cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		ctx := context.Background()

		switch {
		case snapshotDelete:
			if snapshotPrefix == "" {
				log.Fatal("删除操作需要指定前缀")
			}
			n, err := store.DeletePrefix(ctx, snapshotPrefix)
			if err != nil {
				log.Fatalf("删除失败: %v", err)
			}
			fmt.Printf("已删除 %d 个对象\n", n)

		case snapshotPrune > 0:
			n, err := store.Prune(ctx, snapshotPrune)
			if err != nil {
				log.Fatalf("清理失败: %v", err)
			}
			fmt.Printf("已清理 %d 个旧快照，保留最近 %d 个\n", n, snapshotPrune)

		case snapshotShow:
			snap, err := store.Latest(ctx)
			if err != nil {
				log.Fatalf("读取最新快照失败: %v", err)
			}
			fmt.Printf("第 %d 代，词条 %q，创建于 %s，共 %d 首\n",
				snap.Generation, snap.Term, snap.CreatedAt.Format("2006-01-02 15:04:05"), len(snap.Tracks))
			printTracks(snap.Tracks, 0)

		default:
			objects, stats, err := store.List(ctx, snapshotPrefix)
			if err != nil {
				log.Fatalf("列出快照失败: %v", err)
			}
			if !snapshotStats {
				for _, o := range objects {
					fmt.Printf("%-50s %10s  %s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format("2006-01-02 15:04:05"))
				}
			}
			fmt.Printf("\n总对象数: %d, 总大小: %s", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf(", 最后修改: %s", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVarP(&snapshotPrefix, "prefix", "p", "", "按前缀过滤，默认 catalog/")
	snapshotCmd.Flags().BoolVarP(&snapshotStats, "stats", "s", false, "只显示统计信息")
	snapshotCmd.Flags().BoolVarP(&snapshotDelete, "delete", "d", false, "删除指定前缀下的所有对象")
	snapshotCmd.Flags().IntVar(&snapshotPrune, "prune", 0, "只保留最近 N 个快照")
	snapshotCmd.Flags().BoolVarP(&snapshotShow, "latest", "l", false, "显示最新快照中的曲目")

	snapshotCmd.Example = `  # 列出所有快照
  beatflow snapshot

  # 统计信息
  beatflow snapshot -s

  # 只保留最近 20 个
  beatflow snapshot --prune 20`
}
