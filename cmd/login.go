package cmd

import (
	"errors"
	"fmt"

	"nuvyx/core/auth"

	"github.com/spf13/cobra"
)

var (
	loginToken  string
	loginLogout bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "保存播放器使用的登录 token",
	Long:  `把 /api/auth/verify 返回的 token 保存到系统钥匙串，play 命令会从这里读取。--logout 删除已保存的 token。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginLogout {
			if err := auth.DeleteToken(); err != nil {
				return err
			}
			fmt.Println("已退出登录")
			return nil
		}
		if loginToken == "" {
			return errors.New("--token is required")
		}
		if err := auth.SaveToken(loginToken); err != nil {
			return fmt.Errorf("保存 token 失败: %w", err)
		}
		fmt.Println("登录信息已保存")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginToken, "token", "t", "", "bearer token")
	loginCmd.Flags().BoolVar(&loginLogout, "logout", false, "删除已保存的 token")
	rootCmd.AddCommand(loginCmd)
}
