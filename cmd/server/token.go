package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"organizerpro/backend/pkg/jwt"
)

// tokenCommand 用配置中的密钥签发本地联调用的 Access Token
// 生产环境的令牌由外部认证服务签发
func tokenCommand() *cobra.Command {
	var userID, role, ownerID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发联调用 Access Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case jwt.RoleAdmin, jwt.RoleManager, jwt.RoleChild:
			default:
				return fmt.Errorf("未知角色 %q", role)
			}
			if userID == "" {
				return fmt.Errorf("--user 不能为空")
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(userID, role, ownerID)
			if err != nil {
				return fmt.Errorf("签发令牌失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "用户 ID")
	cmd.Flags().StringVar(&role, "role", jwt.RoleAdmin, "角色: admin | manager | child")
	cmd.Flags().StringVar(&ownerID, "owner", "", "子账号所属主账号 ID")
	return cmd
}
