package cmd

import (
	"context"
	"fmt"
	"log"

	"beatflow/core/cart"
	"beatflow/server"

	"github.com/spf13/cobra"
)

var slotClear bool

var slotCmd = &cobra.Command{
	Use:   "slot <session-id>",
	Short: "查看或清除会话的持久化槽位",
	Long:  `读取配置的槽位后端（file/redis/mysql），打印某个会话保存的购物车和待执行搜索词，可选清除。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		fmt.Printf("槽位后端: %s\n", cfg.SlotBackend)

		slot, closeSlot, err := server.OpenSlot(cfg)
		if err != nil {
			log.Fatalf("无法打开槽位: %v", err)
		}
		defer closeSlot()

		ctx := context.Background()
		sid := args[0]
		keys := []string{server.CartKey(sid), server.PendingKey(sid)}

		if slotClear {
			for _, key := range keys {
				if err := slot.Delete(ctx, key); err != nil {
					log.Fatalf("清除 %s 失败: %v", key, err)
				}
			}
			fmt.Println("槽位已清除")
			return
		}

		for _, key := range keys {
			value, ok, err := slot.Get(ctx, key)
			switch {
			case err != nil:
				fmt.Printf("%s: 读取失败 %v\n", key, err)
			case !ok:
				fmt.Printf("%s: (空)\n", key)
			default:
				fmt.Printf("%s: %s\n", key, value)
			}
		}

		store := cart.Open(ctx, slot, server.CartKey(sid))
		st := store.State()
		fmt.Printf("\n购物车 %d 件，合计 $%s\n", st.ItemCount, st.Total.StringFixed(2))
	},
}

func init() {
	rootCmd.AddCommand(slotCmd)
	slotCmd.Flags().BoolVarP(&slotClear, "clear", "c", false, "清除该会话的购物车和搜索词")
}
