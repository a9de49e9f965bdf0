package cmd

import (
	"context"
	"fmt"
	"log"

	"beatflow/core/catalog"
	"beatflow/model"
	"beatflow/server"

	"github.com/spf13/cobra"
)

var (
	catalogTerm     string
	catalogPage     int
	catalogFeatured bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "命令行加载目录",
	Long:  `使用与服务器相同的数据源和过滤规则加载目录，并打印一页结果或精选曲目`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		snapshots, err := server.OpenSnapshots(cfg)
		if err != nil {
			log.Printf("MinIO 不可用，忽略快照: %v", err)
			snapshots = nil
		}
		searcher, err := server.NewSearcher(cfg, snapshots)
		if err != nil {
			log.Fatalf("初始化数据源失败: %v", err)
		}
		agg := server.NewAggregator(cfg, searcher, snapshots)
		ctx := context.Background()

		if catalogFeatured {
			tracks, report := agg.Featured(ctx)
			if report != nil {
				printReport(*report)
			}
			if len(tracks) == 0 {
				fmt.Println(server.CatalogUnavailable)
				return
			}
			fmt.Printf("\n精选 %d 首:\n", len(tracks))
			printTracks(tracks, 0)
			return
		}

		if catalogTerm != "" {
			fmt.Printf("正在搜索: %s\n", catalogTerm)
		}
		printReport(agg.Load(ctx, catalogTerm))

		page := agg.Page(catalogPage)
		if page.Total == 0 {
			fmt.Println(server.CatalogUnavailable)
			return
		}
		fmt.Printf("\n第 %d/%d 页，共 %d 首:\n", page.Number, page.PageCount, page.Total)
		printTracks(page.Tracks, (page.Number-1)*catalog.PageSize)
	},
}

func printReport(r catalog.LoadReport) {
	fmt.Printf("查询词条 %v，获取 %d 条，去重后 %d 首，耗时 %s\n", r.Queried, r.Fetched, r.Total, r.Elapsed)
	for _, f := range r.Failures {
		fmt.Printf("  词条 %q 失败 (%s): %v\n", f.Term, f.Reason, f.Err)
	}
}

func printTracks(tracks []model.Track, offset int) {
	for i, t := range tracks {
		fmt.Printf("%d. %s - %s [%s] %s\n", offset+i+1, t.Name, t.Artist, t.Collection, t.PriceLabel())
	}
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().StringVarP(&catalogTerm, "term", "t", "", "搜索词条，为空时使用精选词条")
	catalogCmd.Flags().IntVarP(&catalogPage, "page", "p", 1, "页码，每页 30 首")
	catalogCmd.Flags().BoolVarP(&catalogFeatured, "featured", "f", false, "只显示随机精选曲目")

	catalogCmd.Example = `  # 加载精选词条并显示第一页
  beatflow catalog

  # 搜索并显示第二页
  beatflow catalog -t "daft punk" -p 2

  # 随机精选
  beatflow catalog -f`
}
